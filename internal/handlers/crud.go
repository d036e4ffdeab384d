package handlers

import (
	"context"
	"net/http"

	"github.com/GurgoSoft/MIND-sub001/internal/services"
	"github.com/GurgoSoft/MIND-sub001/types"
	"github.com/go-chi/chi/v5"
)

// Resource is the service surface behind a generic CRUD router.
type Resource[T any, F any] interface {
	Get(ctx context.Context, id string) (T, error)
	List(ctx context.Context, filter F, page types.Page) (types.List[T], error)
	Create(ctx context.Context, row T) (T, error)
	Update(ctx context.Context, id string, patch services.Patch[T]) (T, error)
	Delete(ctx context.Context, id string) error
}

// FilterFunc reads the list filter of a resource from the query string.
type FilterFunc[F any] func(r *http.Request) (F, error)

type crudHandler[T any, F any] struct {
	Base
	name   string
	svc    Resource[T, F]
	filter FilterFunc[F]
}

// mountCRUD registers list/create on "/" and get/update/delete on "/{id}".
// extra adds routes under "/{id}".
func mountCRUD[T any, F any](r chi.Router, base Base, name string, svc Resource[T, F], filter FilterFunc[F], extra func(r chi.Router)) {
	h := &crudHandler[T, F]{Base: base, name: name, svc: svc, filter: filter}

	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Put("/", h.update)
		r.Patch("/", h.update)
		r.Delete("/", h.delete)
		if extra != nil {
			extra(r)
		}
	})
}

func (h *crudHandler[T, F]) list(w http.ResponseWriter, r *http.Request) {
	page, err := parsePagination(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var filter F
	if h.filter != nil {
		if filter, err = h.filter(r); err != nil {
			h.fail(w, r, err)
			return
		}
	}

	items, err := h.svc.List(r.Context(), filter, page)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, items)
}

func (h *crudHandler[T, F]) get(w http.ResponseWriter, r *http.Request) {
	row, err := h.svc.Get(r.Context(), urlID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, row)
}

func (h *crudHandler[T, F]) create(w http.ResponseWriter, r *http.Request) {
	var row T
	if err := decodeJSON(r, &row); err != nil {
		h.fail(w, r, err)
		return
	}
	created, err := h.svc.Create(r.Context(), row)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeMessage(w, http.StatusCreated, h.name+" created", created)
}

func (h *crudHandler[T, F]) update(w http.ResponseWriter, r *http.Request) {
	patch, err := patchFrom[T](r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	updated, err := h.svc.Update(r.Context(), urlID(r), patch)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, h.name+" updated", updated)
}

func (h *crudHandler[T, F]) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), urlID(r)); err != nil {
		h.fail(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, h.name+" deleted", nil)
}

// action adapts a single-id state transition to a handler.
func action[T any](base Base, message string, fn func(ctx context.Context, id string) (T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		row, err := fn(r.Context(), urlID(r))
		if err != nil {
			base.fail(w, r, err)
			return
		}
		writeMessage(w, http.StatusOK, message, row)
	}
}

func lookupFilter(r *http.Request) (types.LookupFilter, error) {
	active, err := queryBool(r, "active")
	if err != nil {
		return types.LookupFilter{}, err
	}
	return types.LookupFilter{Code: queryString(r, "code"), Active: active}, nil
}

// mountLookup exposes one reference table under its kind.
func mountLookup(r chi.Router, base Base, svc *services.LookupService) {
	r.Route("/"+string(svc.Kind()), func(r chi.Router) {
		mountCRUD[types.Lookup, types.LookupFilter](r, base, "record", svc, lookupFilter, nil)
	})
}
