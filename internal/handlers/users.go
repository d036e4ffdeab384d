package handlers

import (
	"net/http"

	"github.com/GurgoSoft/MIND-sub001/internal/services"
	"github.com/GurgoSoft/MIND-sub001/types"
	"github.com/go-chi/chi/v5"
)

// UsersDeps groups the services exposed by the users service.
type UsersDeps struct {
	Auth          *services.AuthService
	Users         *services.UserService
	Persons       *services.PersonService
	UserTypes     *services.LookupService
	Statuses      *services.LookupService
	PaymentInfos  *services.PaymentInfoService
	Subscriptions *services.SubscriptionService
}

// UsersRouter registers the authenticated routes of the users service.
// Account administration is limited to the administrator user type.
func UsersRouter(r chi.Router, base Base, deps UsersDeps) {
	h := &userHandler{Base: base, auth: deps.Auth, users: deps.Users}
	requireAdmin := RequireAdmin(deps.Auth)

	r.Route("/users", func(r chi.Router) {
		r.With(requireAdmin).Get("/", h.list)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.get)
			r.Put("/password", h.changePassword)
			r.Group(func(r chi.Router) {
				r.Use(requireAdmin)
				r.Put("/", h.update)
				r.Patch("/", h.update)
				r.Delete("/", h.delete)
				r.Patch("/toggle-active", action(base, "user status updated", deps.Users.ToggleActive))
				r.Post("/unlock", h.unlock)
			})
		})
	})
	r.Route("/persons", func(r chi.Router) {
		mountCRUD[types.Person, types.PersonFilter](r, base, "person", deps.Persons, personFilter, nil)
	})
	// Billing has no in-memory store and is absent in memory mode.
	if deps.PaymentInfos != nil {
		r.Route("/payment-infos", func(r chi.Router) {
			mountCRUD[types.PaymentInfo, types.PaymentInfoFilter](r, base, "payment info", deps.PaymentInfos, paymentInfoFilter, nil)
		})
	}
	if deps.Subscriptions != nil {
		r.Route("/subscriptions", func(r chi.Router) {
			mountCRUD[types.Subscription, types.SubscriptionFilter](r, base, "subscription", deps.Subscriptions, subscriptionFilter,
				func(r chi.Router) {
					r.Post("/cancel", action(base, "subscription cancelled", deps.Subscriptions.Cancel))
					r.Post("/reactivate", action(base, "subscription reactivated", deps.Subscriptions.Reactivate))
				})
		})
	}
	mountLookup(r, base, deps.UserTypes)
	mountLookup(r, base, deps.Statuses)
}

type userHandler struct {
	Base
	auth  *services.AuthService
	users *services.UserService
}

func (h *userHandler) list(w http.ResponseWriter, r *http.Request) {
	page, err := parsePagination(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	filter, err := userFilter(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	users, err := h.users.List(r.Context(), filter, page)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, users)
}

func (h *userHandler) get(w http.ResponseWriter, r *http.Request) {
	id := urlID(r)
	if err := requireSelfOrAdmin(r, h.auth, id); err != nil {
		h.fail(w, r, err)
		return
	}
	user, err := h.users.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, user)
}

func (h *userHandler) update(w http.ResponseWriter, r *http.Request) {
	patch, err := patchFrom[types.User](r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	user, err := h.users.Update(r.Context(), urlID(r), patch)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "user updated", user)
}

// delete deactivates the account; users are never removed.
func (h *userHandler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.users.Delete(r.Context(), urlID(r)); err != nil {
		h.fail(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "user deactivated", nil)
}

// unlock clears another account's lockout. An administrator cannot lift
// their own lock.
func (h *userHandler) unlock(w http.ResponseWriter, r *http.Request) {
	id := urlID(r)
	if err := requireOther(r, id); err != nil {
		h.fail(w, r, err)
		return
	}
	user, err := h.auth.Unlock(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "user unlocked", user)
}

func (h *userHandler) changePassword(w http.ResponseWriter, r *http.Request) {
	id := urlID(r)
	if err := requireSelf(r, id); err != nil {
		h.fail(w, r, err)
		return
	}
	var req services.ChangePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.auth.ChangePassword(r.Context(), id, req); err != nil {
		h.fail(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "password updated", nil)
}

func userFilter(r *http.Request) (types.UserFilter, error) {
	active, err := queryBool(r, "active")
	if err != nil {
		return types.UserFilter{}, err
	}
	locked, err := queryBool(r, "locked")
	if err != nil {
		return types.UserFilter{}, err
	}
	return types.UserFilter{
		UserTypeID: queryString(r, "user_type_id"),
		StatusID:   queryString(r, "status_id"),
		Email:      queryString(r, "email"),
		Active:     active,
		Locked:     locked,
	}, nil
}

func personFilter(r *http.Request) (types.PersonFilter, error) {
	return types.PersonFilter{
		DocType:   queryString(r, "doc_type"),
		DocNumber: queryString(r, "doc_number"),
		Name:      queryString(r, "name"),
	}, nil
}

func paymentInfoFilter(r *http.Request) (types.PaymentInfoFilter, error) {
	return types.PaymentInfoFilter{UserID: queryString(r, "user_id")}, nil
}

func subscriptionFilter(r *http.Request) (types.SubscriptionFilter, error) {
	return types.SubscriptionFilter{UserID: queryString(r, "user_id"), Status: queryString(r, "status")}, nil
}
