package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/GurgoSoft/MIND-sub001/internal/audit"
	"github.com/GurgoSoft/MIND-sub001/internal/services"
	"github.com/GurgoSoft/MIND-sub001/internal/storage"
	"github.com/GurgoSoft/MIND-sub001/internal/store"
	"github.com/GurgoSoft/MIND-sub001/types"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const (
	defaultPage  = 1
	maxBodyBytes = 1 << 20
)

// Envelope is the body of every JSON response.
type Envelope struct {
	Success bool                  `json:"success"`
	Message string                `json:"message,omitempty"`
	Data    any                   `json:"data,omitempty"`
	Error   string                `json:"error,omitempty"`
	Errors  []services.FieldError `json:"errors,omitempty"`
	Stack   string                `json:"stack,omitempty"`
}

// Base carries what every handler needs to answer a request.
type Base struct {
	logger      *zap.Logger
	exposeStack bool
}

// NewBase builds a Base. exposeStack adds stack traces to 500 responses.
func NewBase(logger *zap.Logger, exposeStack bool) Base {
	if logger == nil {
		logger = zap.NewNop()
	}
	return Base{logger: logger, exposeStack: exposeStack}
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Envelope{Success: true, Data: data})
}

func writeMessage(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, Envelope{Success: true, Message: message, Data: data})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Envelope{Error: code, Message: message})
}

// problem is the HTTP rendition of an error.
type problem struct {
	status  int
	code    string
	message string
	fields  []services.FieldError
}

func classify(err error) problem {
	var verr *services.ValidationError
	var dup *store.DuplicateError
	var ref *store.ReferenceError
	var bad *badRequestError

	switch {
	case errors.As(err, &bad):
		return problem{http.StatusBadRequest, bad.code, bad.message, nil}
	case errors.As(err, &verr):
		return problem{http.StatusBadRequest, "VALIDATION_ERROR", "validation failed", verr.Fields}
	case errors.Is(err, services.ErrDuplicateEmail):
		return problem{http.StatusBadRequest, "DUPLICATE_EMAIL", err.Error(), nil}
	case errors.Is(err, services.ErrDuplicateDocument):
		return problem{http.StatusBadRequest, "DUPLICATE_DOCUMENT", err.Error(), nil}
	case errors.As(err, &dup):
		return problem{http.StatusBadRequest, "DUPLICATE_KEY", fmt.Sprintf("%s already exists", dup.Field), nil}
	case errors.As(err, &ref):
		return problem{http.StatusBadRequest, "INVALID_REFERENCE", fmt.Sprintf("%s does not exist", ref.Field), nil}
	case errors.Is(err, services.ErrInvalidReference):
		return problem{http.StatusBadRequest, "INVALID_REFERENCE", err.Error(), nil}
	case errors.Is(err, services.ErrInvalidID):
		return problem{http.StatusBadRequest, "INVALID_ID", "invalid id format", nil}
	case errors.Is(err, services.ErrInUse):
		return problem{http.StatusBadRequest, "IN_USE", err.Error(), nil}
	case errors.Is(err, services.ErrScheduleConflict):
		return problem{http.StatusBadRequest, "SCHEDULE_CONFLICT", err.Error(), nil}
	case errors.Is(err, services.ErrInvalidState):
		return problem{http.StatusBadRequest, "INVALID_STATE", err.Error(), nil}
	case errors.Is(err, services.ErrNotLocked):
		return problem{http.StatusBadRequest, "NOT_LOCKED", err.Error(), nil}
	case errors.Is(err, services.ErrVerificationAttempts):
		return problem{http.StatusBadRequest, "VERIFICATION_ATTEMPTS_EXCEEDED", err.Error(), nil}
	case errors.Is(err, services.ErrVerificationCodeMissing):
		return problem{http.StatusBadRequest, "VERIFICATION_CODE_MISSING", err.Error(), nil}
	case errors.Is(err, services.ErrVerificationCodeExpired):
		return problem{http.StatusBadRequest, "VERIFICATION_CODE_EXPIRED", err.Error(), nil}
	case errors.Is(err, services.ErrVerificationCodeMismatch):
		return problem{http.StatusBadRequest, "VERIFICATION_CODE_MISMATCH", err.Error(), nil}
	case errors.Is(err, storage.ErrDisabled):
		return problem{http.StatusBadRequest, "STORAGE_DISABLED", "file storage is not configured", nil}
	case errors.Is(err, services.ErrNotFound), errors.Is(err, storage.ErrObjectNotFound):
		return problem{http.StatusNotFound, "NOT_FOUND", err.Error(), nil}
	case errors.Is(err, services.ErrInvalidCredentials):
		return problem{http.StatusUnauthorized, "INVALID_CREDENTIALS", err.Error(), nil}
	case errors.Is(err, services.ErrTokenExpired):
		return problem{http.StatusUnauthorized, "EXPIRED_TOKEN", "token expired", nil}
	case errors.Is(err, services.ErrTokenInvalid):
		return problem{http.StatusUnauthorized, "INVALID_TOKEN", "invalid token", nil}
	case errors.Is(err, services.ErrUnauthorized):
		return problem{http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized", nil}
	case errors.Is(err, errForbidden), errors.Is(err, errAdminOnly), errors.Is(err, errSelfAction):
		return problem{http.StatusForbidden, "FORBIDDEN", err.Error(), nil}
	case errors.Is(err, services.ErrAccountInactive):
		return problem{http.StatusForbidden, "ACCOUNT_INACTIVE", err.Error(), nil}
	case errors.Is(err, services.ErrAccountLocked):
		return problem{http.StatusForbidden, "ACCOUNT_LOCKED", err.Error(), nil}
	case errors.Is(err, audit.ErrRetentionOutOfRange):
		return problem{http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil}
	}
	return problem{http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error", nil}
}

// fail writes err as an error envelope.
func (b Base) fail(w http.ResponseWriter, r *http.Request, err error) {
	p := classify(err)
	env := Envelope{Error: p.code, Message: p.message, Errors: p.fields}
	if p.status == http.StatusInternalServerError {
		b.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		if b.exposeStack {
			env.Message = err.Error()
			env.Stack = string(debug.Stack())
		}
	}
	writeJSON(w, p.status, env)
}

// badRequestError reports malformed input detected before the service layer.
type badRequestError struct {
	code    string
	message string
}

func (e *badRequestError) Error() string { return e.message }

func badRequest(message string) error {
	return &badRequestError{code: "BAD_REQUEST", message: message}
}

var (
	errForbidden  = errors.New("not allowed to act on this resource")
	errAdminOnly  = errors.New("administrator rights required")
	errSelfAction = errors.New("not allowed on your own account")
)

// decodeJSON reads a bounded JSON body into dst.
func decodeJSON(r *http.Request, dst any) error {
	body, err := readBody(r)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return badRequest("invalid request body")
	}
	return nil
}

func readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, badRequest("failed to read request body")
	}
	if len(body) > maxBodyBytes {
		return nil, badRequest("request body too large")
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, badRequest("request body is required")
	}
	return body, nil
}

// patchFrom turns a JSON body into a patch that overlays the stored row.
func patchFrom[T any](r *http.Request) (services.Patch[T], error) {
	body, err := readBody(r)
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, badRequest("invalid request body")
	}
	return func(row *T) error {
		if err := json.Unmarshal(body, row); err != nil {
			return badRequest("invalid request body")
		}
		return nil
	}, nil
}

func parsePagination(r *http.Request) (types.Page, error) {
	page := types.Page{Page: defaultPage, Limit: types.DefaultPageLimit}
	var err error

	if raw := strings.TrimSpace(r.URL.Query().Get("page")); raw != "" {
		page.Page, err = strconv.Atoi(raw)
		if err != nil || page.Page < 1 {
			return types.Page{}, badRequest("invalid page")
		}
	}

	rawLimit := strings.TrimSpace(r.URL.Query().Get("limit"))
	if rawLimit == "" {
		rawLimit = strings.TrimSpace(r.URL.Query().Get("per_page"))
	}
	if rawLimit != "" {
		page.Limit, err = strconv.Atoi(rawLimit)
		if err != nil || page.Limit < 1 {
			return types.Page{}, badRequest("invalid limit")
		}
	}

	if page.Limit > types.MaxPageLimit {
		page.Limit = types.MaxPageLimit
	}
	return page, nil
}

func urlID(r *http.Request) string {
	return strings.TrimSpace(chi.URLParam(r, "id"))
}

func queryString(r *http.Request, key string) string {
	return strings.TrimSpace(r.URL.Query().Get(key))
}

func queryBool(r *http.Request, key string) (*bool, error) {
	raw := queryString(r, key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, badRequest(fmt.Sprintf("invalid %s", key))
	}
	return &v, nil
}

func queryInt(r *http.Request, key string) (*int, error) {
	raw := queryString(r, key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, badRequest(fmt.Sprintf("invalid %s", key))
	}
	return &v, nil
}

// queryTime accepts RFC 3339 timestamps and plain dates.
func queryTime(r *http.Request, key string) (*time.Time, error) {
	raw := queryString(r, key)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, badRequest(fmt.Sprintf("invalid %s", key))
}
