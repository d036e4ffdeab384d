package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/GurgoSoft/MIND-sub001/internal/audit"
	"github.com/GurgoSoft/MIND-sub001/types"
	"github.com/go-chi/chi/v5"
)

// AuditRouter exposes one domain's audit log for querying and retention.
// Retention cleanup goes through requireAdmin.
func AuditRouter(r chi.Router, base Base, log *audit.Log, requireAdmin func(http.Handler) http.Handler) {
	h := &auditHandler{Base: base, log: log}
	r.Get("/", h.query)
	r.With(requireAdmin).Delete("/", h.cleanup)
}

type auditHandler struct {
	Base
	log *audit.Log
}

func (h *auditHandler) query(w http.ResponseWriter, r *http.Request) {
	page, err := parsePagination(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	from, err := queryTime(r, "from")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	to, err := queryTime(r, "to")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	records, err := h.log.Query(r.Context(), types.AuditFilter{
		Entity:   queryString(r, "entity"),
		EntityID: queryString(r, "entity_id"),
		ActorID:  queryString(r, "actor_id"),
		Action:   types.AuditAction(queryString(r, "action")),
		From:     from,
		To:       to,
	}, page)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, records)
}

type cleanupResult struct {
	Domain  types.AuditDomain `json:"domain"`
	Days    int               `json:"days"`
	Deleted int64             `json:"deleted"`
	RanAt   time.Time         `json:"ran_at"`
}

func (h *auditHandler) cleanup(w http.ResponseWriter, r *http.Request) {
	raw := queryString(r, "days")
	days, err := strconv.Atoi(raw)
	if err != nil {
		lo, hi := audit.RetentionBounds(h.log.Domain())
		h.fail(w, r, badRequest("days must be an integer between "+strconv.Itoa(lo)+" and "+strconv.Itoa(hi)))
		return
	}

	deleted, err := h.log.Cleanup(r.Context(), days)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "audit records removed", cleanupResult{
		Domain:  h.log.Domain(),
		Days:    days,
		Deleted: deleted,
		RanAt:   time.Now().UTC(),
	})
}
