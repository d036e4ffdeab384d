package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/GurgoSoft/MIND-sub001/internal/audit"
	"github.com/GurgoSoft/MIND-sub001/internal/storage"
	"github.com/GurgoSoft/MIND-sub001/types"
)

type ChildRepository[T any] interface {
	Repository[T, types.AppointmentChildFilter]
}

// ChildService manages records that hang off an appointment.
type ChildService[T any] struct {
	crud crud[T, types.AppointmentChildFilter]
}

func newChildService[T any](entity string, repo ChildRepository[T], appointments *AppointmentService, recorder *audit.Recorder, v *Validator, id, appointmentID func(*T) *string) *ChildService[T] {
	s := &ChildService[T]{
		crud: newCRUD[T, types.AppointmentChildFilter](entity, repo, recorder, v, id),
	}
	s.crud.check = func(ctx context.Context, row *T) error {
		return appointments.Exists(ctx, *appointmentID(row))
	}
	return s
}

func NewAppointmentContentService(repo ChildRepository[types.AppointmentContent], appointments *AppointmentService, recorder *audit.Recorder, v *Validator) *ChildService[types.AppointmentContent] {
	return newChildService("AppointmentContent", repo, appointments, recorder, v,
		func(c *types.AppointmentContent) *string { return &c.ID },
		func(c *types.AppointmentContent) *string { return &c.AppointmentID })
}

// NewAppointmentDiagnosisService also requires the diagnosis type to exist.
func NewAppointmentDiagnosisService(repo ChildRepository[types.AppointmentDiagnosis], appointments *AppointmentService, diagnosisTypes *LookupService, recorder *audit.Recorder, v *Validator) *ChildService[types.AppointmentDiagnosis] {
	s := newChildService("AppointmentDiagnosis", repo, appointments, recorder, v,
		func(d *types.AppointmentDiagnosis) *string { return &d.ID },
		func(d *types.AppointmentDiagnosis) *string { return &d.AppointmentID })
	appointmentCheck := s.crud.check
	s.crud.check = func(ctx context.Context, d *types.AppointmentDiagnosis) error {
		if err := appointmentCheck(ctx, d); err != nil {
			return err
		}
		return diagnosisTypes.Exists(ctx, "diagnosis_type_id", d.DiagnosisTypeID)
	}
	return s
}

func NewFollowUpService(repo ChildRepository[types.FollowUp], appointments *AppointmentService, recorder *audit.Recorder, v *Validator) *ChildService[types.FollowUp] {
	return newChildService("FollowUp", repo, appointments, recorder, v,
		func(f *types.FollowUp) *string { return &f.ID },
		func(f *types.FollowUp) *string { return &f.AppointmentID })
}

func (s *ChildService[T]) Get(ctx context.Context, id string) (T, error) {
	return s.crud.get(ctx, id)
}

func (s *ChildService[T]) List(ctx context.Context, filter types.AppointmentChildFilter, page types.Page) (types.List[T], error) {
	return s.crud.list(ctx, filter, page)
}

func (s *ChildService[T]) Create(ctx context.Context, row T) (T, error) {
	return s.crud.create(ctx, row)
}

func (s *ChildService[T]) Update(ctx context.Context, id string, patch Patch[T]) (T, error) {
	return s.crud.update(ctx, id, patch)
}

func (s *ChildService[T]) Delete(ctx context.Context, id string) error {
	return s.crud.delete(ctx, id)
}

// RecordService adds file attachments to appointment records.
type RecordService struct {
	*ChildService[types.AppointmentRecord]
	files *storage.Attachments
	now   Clock
}

// NewRecordService accepts a nil files store; uploads then fail with
// storage.ErrDisabled.
func NewRecordService(repo ChildRepository[types.AppointmentRecord], appointments *AppointmentService, files *storage.Attachments, recorder *audit.Recorder, v *Validator) *RecordService {
	return &RecordService{
		ChildService: newChildService("AppointmentRecord", repo, appointments, recorder, v,
			func(r *types.AppointmentRecord) *string { return &r.ID },
			func(r *types.AppointmentRecord) *string { return &r.AppointmentID }),
		files: files,
	}
}

// Create ignores client supplied attachments; files are added with Attach.
func (s *RecordService) Create(ctx context.Context, r types.AppointmentRecord) (types.AppointmentRecord, error) {
	r.Attachments = types.Attachments{}
	return s.crud.create(ctx, r)
}

func (s *RecordService) Update(ctx context.Context, id string, patch Patch[types.AppointmentRecord]) (types.AppointmentRecord, error) {
	return s.crud.update(ctx, id, func(r *types.AppointmentRecord) error {
		attachments := r.Attachments
		if err := patch(r); err != nil {
			return err
		}
		r.Attachments = attachments
		return nil
	})
}

// Attach uploads a file and lists it on the record.
func (s *RecordService) Attach(ctx context.Context, recordID, filename, contentType string, r io.Reader, size int64) (types.AppointmentRecord, error) {
	before, err := s.crud.get(ctx, recordID)
	if err != nil {
		return types.AppointmentRecord{}, err
	}
	obj, err := s.files.Upload(ctx, recordID, filename, r, size, contentType)
	if err != nil {
		return types.AppointmentRecord{}, err
	}

	record := before
	record.Attachments = append(append(types.Attachments{}, before.Attachments...), types.Attachment{
		Key:         obj.Key,
		Filename:    filename,
		ContentType: obj.ContentType,
		Size:        obj.Size,
		UploadedAt:  s.now.now(),
	})
	updated, err := s.crud.save(ctx, before, record)
	if err != nil {
		if delErr := s.files.Delete(context.WithoutCancel(ctx), recordID, obj.Key); delErr != nil {
			err = errors.Join(err, fmt.Errorf("remove orphaned object: %w", delErr))
		}
		return types.AppointmentRecord{}, err
	}
	return updated, nil
}

// OpenAttachment streams a file listed on the record.
func (s *RecordService) OpenAttachment(ctx context.Context, recordID, key string) (io.ReadCloser, types.Attachment, error) {
	record, err := s.crud.get(ctx, recordID)
	if err != nil {
		return nil, types.Attachment{}, err
	}
	for _, a := range record.Attachments {
		if a.Key != key {
			continue
		}
		rc, _, err := s.files.Open(ctx, recordID, key)
		if err != nil {
			return nil, types.Attachment{}, err
		}
		return rc, a, nil
	}
	return nil, types.Attachment{}, notFound("Attachment")
}
