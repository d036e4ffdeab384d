package types

import "time"

// LookupKind names one of the small reference tables. The value doubles as the
// URL segment under which the table is exposed.
type LookupKind string

const (
	LookupUserTypes      LookupKind = "user-types"
	LookupStatuses       LookupKind = "statuses"
	LookupAgendaTypes    LookupKind = "agenda-types"
	LookupDiagnosisTypes LookupKind = "diagnosis-types"
	LookupEmotions       LookupKind = "emotions"
	LookupSensations     LookupKind = "sensations"
	LookupFeelings       LookupKind = "feelings"
	LookupSymptoms       LookupKind = "symptoms"
)

// Lookup is a row of a reference table (code + name).
type Lookup struct {
	ID          string    `json:"id" db:"id"`
	Code        string    `json:"code" db:"code" validate:"required,max=50"`
	Name        string    `json:"name" db:"name" validate:"required,max=100"`
	Description *string   `json:"description,omitempty" db:"description"`
	Active      bool      `json:"active" db:"active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}
