package types

import (
	"encoding/json"
	"time"
)

// AuditAction is the kind of change an audit record describes.
type AuditAction string

const (
	AuditCreate AuditAction = "CREATE"
	AuditUpdate AuditAction = "UPDATE"
	AuditDelete AuditAction = "DELETE"
	AuditLogin  AuditAction = "LOGIN"
	AuditLogout AuditAction = "LOGOUT"
)

// AuditDomain selects the audit log a record is written to. Each service owns one.
type AuditDomain string

const (
	AuditDomainUsers  AuditDomain = "users"
	AuditDomainAgenda AuditDomain = "agenda"
	AuditDomainDiary  AuditDomain = "diary"
)

// AuditRecord is an append-only entry describing one change to an entity.
type AuditRecord struct {
	// ID is a time-ordered identifier (ksuid).
	ID string `json:"id" db:"id"`

	// Entity is the entity name, e.g. "User" or "Appointment".
	Entity string `json:"entity" db:"entity"`

	// EntityID identifies the changed row.
	EntityID string `json:"entity_id" db:"entity_id"`

	Action AuditAction `json:"action" db:"action"`

	// ActorID is the authenticated user, or the system actor for anonymous calls.
	ActorID string `json:"actor_id" db:"actor_id"`

	// Before and After are JSON snapshots; either may be empty.
	Before json.RawMessage `json:"before,omitempty" db:"before"`
	After  json.RawMessage `json:"after,omitempty" db:"after"`

	IP        *string   `json:"ip,omitempty" db:"ip"`
	UserAgent *string   `json:"user_agent,omitempty" db:"user_agent"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// AuditFilter narrows an audit query. Zero values are ignored.
type AuditFilter struct {
	Entity   string
	EntityID string
	ActorID  string
	Action   AuditAction
	From     *time.Time
	To       *time.Time
}
