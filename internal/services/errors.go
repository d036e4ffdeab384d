package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/GurgoSoft/MIND-sub001/internal/auth"
	"github.com/GurgoSoft/MIND-sub001/internal/store"
)

var (
	ErrNotFound         = store.ErrNotFound
	ErrInvalidReference = store.ErrInvalidReference
	ErrInvalidID        = store.ErrInvalidID

	ErrDuplicateEmail    = errors.New("email is already registered")
	ErrDuplicateDocument = errors.New("document is already registered")

	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountInactive    = errors.New("account is inactive")
	ErrAccountLocked      = errors.New("account is locked")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrTokenInvalid       = auth.ErrTokenInvalid
	ErrTokenExpired       = auth.ErrTokenExpired

	ErrVerificationCodeMissing  = errors.New("no verification code pending")
	ErrVerificationCodeExpired  = errors.New("verification code expired")
	ErrVerificationCodeMismatch = errors.New("verification code does not match")
	ErrVerificationAttempts     = errors.New("too many wrong verification codes, request a new one")
	ErrNotLocked                = errors.New("account is not locked")

	ErrInUse            = errors.New("record is in use")
	ErrScheduleConflict = errors.New("specialist already has an appointment at that time")
	ErrInvalidState     = errors.New("operation not allowed in the current state")
)

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value,omitempty"`
}

// ValidationError carries every field that failed validation.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func invalidField(field, message string, value any) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message, Value: value}}}
}

func notFound(entity string) error {
	return fmt.Errorf("%s %w", entity, ErrNotFound)
}

// translate maps storage errors onto the service vocabulary.
func translate(entity string, err error) error {
	if err == nil {
		return nil
	}
	var dup *store.DuplicateError
	if errors.As(err, &dup) {
		switch {
		case dup.Table == "users" && dup.Field == "email":
			return ErrDuplicateEmail
		case dup.Table == "persons" && dup.Field == "document":
			return ErrDuplicateDocument
		case dup.Table == "appointments" && dup.Field == "specialist_start":
			return ErrScheduleConflict
		}
		return err
	}
	if errors.Is(err, store.ErrNotFound) {
		return notFound(entity)
	}
	return err
}

// reference checks that a referenced row exists.
func reference(field string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrInvalidID) {
		return &store.ReferenceError{Field: field}
	}
	return err
}
