package handlers

import (
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/GurgoSoft/MIND-sub001/internal/services"
	"github.com/GurgoSoft/MIND-sub001/types"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	maxMultipartMemory = 8 << 20
	maxAttachmentBytes = 25 << 20
	formFieldFile      = "file"
)

// AgendaDeps groups the services exposed by the agenda service.
type AgendaDeps struct {
	AgendaTypes    *services.LookupService
	DiagnosisTypes *services.LookupService
	Agendas        *services.AgendaService
	AgendaDays     *services.AgendaDayService
	Appointments   *services.AppointmentService
	Contents       *services.ChildService[types.AppointmentContent]
	Diagnoses      *services.ChildService[types.AppointmentDiagnosis]
	Records        *services.RecordService
	FollowUps      *services.ChildService[types.FollowUp]
	Notifications  *services.NotificationService
}

// AgendaRouter registers the authenticated routes of the agenda service.
func AgendaRouter(r chi.Router, base Base, deps AgendaDeps) {
	h := &agendaHandler{Base: base, appointments: deps.Appointments, records: deps.Records}

	mountLookup(r, base, deps.AgendaTypes)
	mountLookup(r, base, deps.DiagnosisTypes)

	r.Route("/agendas", func(r chi.Router) {
		mountCRUD[types.Agenda, types.AgendaFilter](r, base, "agenda", deps.Agendas, agendaFilter, nil)
	})
	r.Route("/agenda-days", func(r chi.Router) {
		mountCRUD[types.AgendaDay, types.AgendaDayFilter](r, base, "agenda day", deps.AgendaDays, agendaDayFilter, nil)
	})
	r.Route("/appointments", func(r chi.Router) {
		mountCRUD[types.Appointment, types.AppointmentFilter](r, base, "appointment", deps.Appointments, appointmentFilter,
			func(r chi.Router) {
				r.Post("/cancel", h.cancelAppointment)
				r.Post("/complete", action(base, "appointment completed", deps.Appointments.Complete))
			})
	})
	r.Route("/appointment-contents", func(r chi.Router) {
		mountCRUD[types.AppointmentContent, types.AppointmentChildFilter](r, base, "appointment content", deps.Contents, childFilter, nil)
	})
	r.Route("/appointment-diagnoses", func(r chi.Router) {
		mountCRUD[types.AppointmentDiagnosis, types.AppointmentChildFilter](r, base, "appointment diagnosis", deps.Diagnoses, childFilter, nil)
	})
	r.Route("/appointment-records", func(r chi.Router) {
		mountCRUD[types.AppointmentRecord, types.AppointmentChildFilter](r, base, "appointment record", deps.Records, childFilter,
			func(r chi.Router) {
				r.Post("/attachments", h.uploadAttachment)
				r.Get("/attachments/*", h.downloadAttachment)
			})
	})
	r.Route("/follow-ups", func(r chi.Router) {
		mountCRUD[types.FollowUp, types.AppointmentChildFilter](r, base, "follow-up", deps.FollowUps, childFilter, nil)
	})
	r.Route("/notifications", func(r chi.Router) {
		mountCRUD[types.Notification, types.NotificationFilter](r, base, "notification", deps.Notifications, notificationFilter,
			func(r chi.Router) {
				r.Post("/mark-sent", action(base, "notification marked as sent", deps.Notifications.MarkSent))
				r.Post("/dispatch", action(base, "notification dispatched", deps.Notifications.Dispatch))
			})
	})
}

type agendaHandler struct {
	Base
	appointments *services.AppointmentService
	records      *services.RecordService
}

type cancelRequest struct {
	Reason *string `json:"reason"`
}

func (h *agendaHandler) cancelAppointment(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	appt, err := h.appointments.Cancel(r.Context(), urlID(r), req.Reason)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "appointment cancelled", appt)
}

func (h *agendaHandler) uploadAttachment(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAttachmentBytes+maxMultipartMemory)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		h.fail(w, r, badRequest("invalid multipart form"))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()
	files := r.MultipartForm.File[formFieldFile]
	if len(files) != 1 {
		h.fail(w, r, badRequest("exactly one file is required"))
		return
	}
	header := files[0]
	if header.Size > maxAttachmentBytes {
		h.fail(w, r, badRequest("uploaded file too large"))
		return
	}
	file, err := header.Open()
	if err != nil {
		h.fail(w, r, badRequest("failed to read uploaded file"))
		return
	}
	defer file.Close()

	record, err := h.records.Attach(r.Context(), urlID(r), header.Filename, header.Header.Get("Content-Type"), file, header.Size)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeMessage(w, http.StatusCreated, "attachment uploaded", record)
}

func (h *agendaHandler) downloadAttachment(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	rc, attachment, err := h.records.OpenAttachment(r.Context(), urlID(r), key)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer rc.Close()

	contentType := attachment.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", contentDisposition(attachment.Filename))
	if attachment.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(attachment.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Debug("attachment stream interrupted", zap.String("key", key), zap.Error(err))
	}
}

// contentDisposition quotes name per RFC 6266; non-ASCII names use the
// RFC 2231 extended form.
func contentDisposition(name string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": name}); v != "" {
		return v
	}
	return "attachment"
}

func agendaFilter(r *http.Request) (types.AgendaFilter, error) {
	active, err := queryBool(r, "active")
	if err != nil {
		return types.AgendaFilter{}, err
	}
	return types.AgendaFilter{
		SpecialistID: queryString(r, "specialist_id"),
		AgendaTypeID: queryString(r, "agenda_type_id"),
		Active:       active,
	}, nil
}

func agendaDayFilter(r *http.Request) (types.AgendaDayFilter, error) {
	day, err := queryInt(r, "day_of_week")
	if err != nil {
		return types.AgendaDayFilter{}, err
	}
	return types.AgendaDayFilter{AgendaID: queryString(r, "agenda_id"), DayOfWeek: day}, nil
}

func appointmentFilter(r *http.Request) (types.AppointmentFilter, error) {
	from, err := queryTime(r, "from")
	if err != nil {
		return types.AppointmentFilter{}, err
	}
	to, err := queryTime(r, "to")
	if err != nil {
		return types.AppointmentFilter{}, err
	}
	return types.AppointmentFilter{
		SpecialistID: queryString(r, "specialist_id"),
		PatientID:    queryString(r, "patient_id"),
		AgendaID:     queryString(r, "agenda_id"),
		Status:       types.AppointmentStatus(queryString(r, "status")),
		From:         from,
		To:           to,
	}, nil
}

func childFilter(r *http.Request) (types.AppointmentChildFilter, error) {
	return types.AppointmentChildFilter{AppointmentID: queryString(r, "appointment_id")}, nil
}

func notificationFilter(r *http.Request) (types.NotificationFilter, error) {
	sent, err := queryBool(r, "sent")
	if err != nil {
		return types.NotificationFilter{}, err
	}
	return types.NotificationFilter{UserID: queryString(r, "user_id"), Sent: sent}, nil
}
