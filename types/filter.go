package types

import "time"

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Page is a 1-based page request.
type Page struct {
	Page  int
	Limit int
}

// Normalize clamps the page into the accepted range.
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}

func (p Page) Offset() int {
	p = p.Normalize()
	return (p.Page - 1) * p.Limit
}

// List is a page of results plus the total number of matches.
type List[T any] struct {
	Items []T `json:"items"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

// NewList builds a List for page, never returning a nil Items slice.
func NewList[T any](items []T, page Page, total int) List[T] {
	page = page.Normalize()
	if items == nil {
		items = []T{}
	}
	return List[T]{Items: items, Page: page.Page, Limit: page.Limit, Total: total}
}

type PersonFilter struct {
	DocType   string
	DocNumber string
	Name      string
}

type UserFilter struct {
	UserTypeID string
	StatusID   string
	Email      string
	Active     *bool
	Locked     *bool
}

type LookupFilter struct {
	Code   string
	Active *bool
}

type PaymentInfoFilter struct {
	UserID string
}

type SubscriptionFilter struct {
	UserID string
	Status string
}

type AgendaFilter struct {
	SpecialistID string
	AgendaTypeID string
	Active       *bool
}

type AgendaDayFilter struct {
	AgendaID  string
	DayOfWeek *int
}

type AppointmentFilter struct {
	SpecialistID string
	PatientID    string
	AgendaID     string
	Status       AppointmentStatus
	From         *time.Time
	To           *time.Time
}

// AppointmentChildFilter narrows contents, diagnoses, records and follow-ups.
type AppointmentChildFilter struct {
	AppointmentID string
}

type NotificationFilter struct {
	UserID string
	Sent   *bool
}

type DiaryFilter struct {
	UserID string
	From   *time.Time
	To     *time.Time
}
