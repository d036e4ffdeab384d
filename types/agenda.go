package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Agenda is a specialist's schedule container.
type Agenda struct {
	ID           string    `json:"id" db:"id"`
	SpecialistID string    `json:"specialist_id" db:"specialist_id" validate:"required"`
	AgendaTypeID string    `json:"agenda_type_id" db:"agenda_type_id" validate:"required"`
	Name         string    `json:"name" db:"name" validate:"required,max=150"`
	Description  *string   `json:"description,omitempty" db:"description"`
	Active       bool      `json:"active" db:"active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`

	AgendaType *Lookup `json:"agenda_type,omitempty" db:"-"`
}

// AgendaDay is a recurring availability window of an agenda.
// StartTime and EndTime are "HH:MM" in the specialist's local time.
type AgendaDay struct {
	ID          string    `json:"id" db:"id"`
	AgendaID    string    `json:"agenda_id" db:"agenda_id" validate:"required"`
	DayOfWeek   int       `json:"day_of_week" db:"day_of_week" validate:"min=0,max=6"`
	StartTime   string    `json:"start_time" db:"start_time" validate:"required,len=5"`
	EndTime     string    `json:"end_time" db:"end_time" validate:"required,len=5"`
	SlotMinutes int       `json:"slot_minutes" db:"slot_minutes" validate:"min=5,max=480"`
	Available   bool      `json:"available" db:"available"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// AppointmentStatus is the lifecycle state of an appointment.
type AppointmentStatus string

const (
	AppointmentScheduled AppointmentStatus = "scheduled"
	AppointmentCompleted AppointmentStatus = "completed"
	AppointmentCancelled AppointmentStatus = "cancelled"
)

// Appointment is a booked session between a patient and a specialist.
// No two non-cancelled appointments of the same specialist share a StartAt.
type Appointment struct {
	ID           string  `json:"id" db:"id"`
	AgendaID     *string `json:"agenda_id,omitempty" db:"agenda_id"`
	SpecialistID string  `json:"specialist_id" db:"specialist_id" validate:"required"`
	PatientID    string  `json:"patient_id" db:"patient_id" validate:"required"`

	StartAt time.Time `json:"start_at" db:"start_at" validate:"required"`
	EndAt   time.Time `json:"end_at" db:"end_at" validate:"required,gtfield=StartAt"`

	Status AppointmentStatus `json:"status" db:"status"`
	Reason *string           `json:"reason,omitempty" db:"reason"`
	Notes  *string           `json:"notes,omitempty" db:"notes"`

	CancelReason *string    `json:"cancel_reason,omitempty" db:"cancel_reason"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty" db:"cancelled_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty" db:"completed_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// AppointmentContent is free-form material attached to an appointment.
type AppointmentContent struct {
	ID            string    `json:"id" db:"id"`
	AppointmentID string    `json:"appointment_id" db:"appointment_id" validate:"required"`
	Title         string    `json:"title" db:"title" validate:"required,max=200"`
	Body          string    `json:"body" db:"body"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// AppointmentDiagnosis links an appointment to a diagnosis type.
type AppointmentDiagnosis struct {
	ID              string    `json:"id" db:"id"`
	AppointmentID   string    `json:"appointment_id" db:"appointment_id" validate:"required"`
	DiagnosisTypeID string    `json:"diagnosis_type_id" db:"diagnosis_type_id" validate:"required"`
	Notes           *string   `json:"notes,omitempty" db:"notes"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`

	DiagnosisType *Lookup `json:"diagnosis_type,omitempty" db:"-"`
}

// Attachment describes an object uploaded for an appointment record.
type Attachment struct {
	Key         string    `json:"key" bson:"key"`
	Filename    string    `json:"filename" bson:"filename"`
	ContentType string    `json:"content_type" bson:"content_type"`
	Size        int64     `json:"size" bson:"size"`
	UploadedAt  time.Time `json:"uploaded_at" bson:"uploaded_at"`
}

// Attachments is stored as a JSONB array.
type Attachments []Attachment

func (a Attachments) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (a *Attachments) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*a = Attachments{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("attachments: unsupported type %T", src)
	}
	return json.Unmarshal(raw, a)
}

// AppointmentRecord is the clinical record written after an appointment.
type AppointmentRecord struct {
	ID            string      `json:"id" db:"id"`
	AppointmentID string      `json:"appointment_id" db:"appointment_id" validate:"required"`
	Summary       string      `json:"summary" db:"summary" validate:"required"`
	Attachments   Attachments `json:"attachments" db:"attachments"`
	CreatedAt     time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at" db:"updated_at"`
}

// FollowUp is a planned check-in after an appointment.
type FollowUp struct {
	ID            string     `json:"id" db:"id"`
	AppointmentID string     `json:"appointment_id" db:"appointment_id" validate:"required"`
	ScheduledFor  *time.Time `json:"scheduled_for,omitempty" db:"scheduled_for"`
	Notes         *string    `json:"notes,omitempty" db:"notes"`
	Completed     bool       `json:"completed" db:"completed"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// Notification is a message addressed to a user, optionally about an appointment.
// Once Sent is true it cannot be marked sent again.
type Notification struct {
	ID            string     `json:"id" db:"id"`
	UserID        string     `json:"user_id" db:"user_id" validate:"required"`
	AppointmentID *string    `json:"appointment_id,omitempty" db:"appointment_id"`
	Channel       string     `json:"channel" db:"channel" validate:"required,oneof=email push sms"`
	Subject       string     `json:"subject" db:"subject" validate:"required,max=200"`
	Body          string     `json:"body" db:"body" validate:"required"`
	ScheduledAt   *time.Time `json:"scheduled_at,omitempty" db:"scheduled_at"`
	Sent          bool       `json:"sent" db:"sent"`
	SentAt        *time.Time `json:"sent_at,omitempty" db:"sent_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}
