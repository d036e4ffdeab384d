package handlers

import (
	"net/http"

	"github.com/GurgoSoft/MIND-sub001/internal/services"
	"github.com/GurgoSoft/MIND-sub001/types"
	"github.com/go-chi/chi/v5"
)

// DiaryDeps groups the services exposed by the diary service.
type DiaryDeps struct {
	Entries *services.DiaryService
	Lookups map[types.DiaryItemKind]*services.LookupService
}

// DiaryRouter registers the authenticated routes of the diary service.
func DiaryRouter(r chi.Router, base Base, deps DiaryDeps) {
	h := &diaryHandler{Base: base, entries: deps.Entries}

	for _, kind := range types.DiaryItemKinds {
		if svc, ok := deps.Lookups[kind]; ok {
			mountLookup(r, base, svc)
		}
	}

	r.Route("/diary-entries", func(r chi.Router) {
		mountCRUD[types.DiaryEntry, types.DiaryFilter](r, base, "diary entry", deps.Entries, diaryFilter,
			func(r chi.Router) {
				for _, kind := range types.DiaryItemKinds {
					r.Post("/"+string(kind), h.addItem(kind))
					r.Delete("/"+string(kind)+"/{itemID}", h.removeItem(kind))
				}
			})
	})
}

type diaryHandler struct {
	Base
	entries *services.DiaryService
}

func (h *diaryHandler) addItem(kind types.DiaryItemKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var item types.DiaryItem
		if err := decodeJSON(r, &item); err != nil {
			h.fail(w, r, err)
			return
		}
		added, err := h.entries.AddItem(r.Context(), urlID(r), kind, item)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeMessage(w, http.StatusCreated, string(kind)+" item added", added)
	}
}

func (h *diaryHandler) removeItem(kind types.DiaryItemKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.entries.RemoveItem(r.Context(), urlID(r), kind, chi.URLParam(r, "itemID")); err != nil {
			h.fail(w, r, err)
			return
		}
		writeMessage(w, http.StatusOK, string(kind)+" item removed", nil)
	}
}

func diaryFilter(r *http.Request) (types.DiaryFilter, error) {
	from, err := queryTime(r, "from")
	if err != nil {
		return types.DiaryFilter{}, err
	}
	to, err := queryTime(r, "to")
	if err != nil {
		return types.DiaryFilter{}, err
	}
	return types.DiaryFilter{UserID: queryString(r, "user_id"), From: from, To: to}, nil
}
