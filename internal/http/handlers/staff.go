package handlers

import (
	"net/http"

	"github.com/hongminglow/console-bank/internal/auth"
	"github.com/hongminglow/console-bank/internal/http/respond"
	"github.com/hongminglow/console-bank/internal/ledger"
	"github.com/hongminglow/console-bank/internal/logger"
	"github.com/hongminglow/console-bank/internal/middleware"
	"github.com/hongminglow/console-bank/internal/models/dto"
)

var staffActions = map[string]struct {
	op      lifecycleOp
	message string
}{
	"close":      {(*ledger.Directory).CloseAccount, "account closed"},
	"reactivate": {(*ledger.Directory).ReactivateAccount, "account reactivated"},
	"freeze":     {(*ledger.Directory).FreezeAccount, "account frozen"},
	"unfreeze":   {(*ledger.Directory).UnfreezeAccount, "account unfrozen"},
}

// StaffHandler lets staff inspect customers and manage account lifecycle.
type StaffHandler struct {
	ledger *Ledger
	tokens *auth.TokenManager
}

func NewStaffHandler(l *Ledger, tokens *auth.TokenManager) *StaffHandler {
	return &StaffHandler{ledger: l, tokens: tokens}
}

func (h *StaffHandler) Register(mux *http.ServeMux) {
	protect := middleware.RequireRole(h.tokens, auth.RoleStaff)
	mux.Handle("GET /staff/customers", protect(http.HandlerFunc(h.handleList)))
	mux.Handle("GET /staff/customers/{username}", protect(http.HandlerFunc(h.handleCustomer)))
	mux.Handle("POST /staff/customers/{username}/accounts/{number}/{action}", protect(http.HandlerFunc(h.handleAction)))
}

func (h *StaffHandler) handleList(w http.ResponseWriter, r *http.Request) {
	var views []dto.CustomerView
	err := h.ledger.Do(func(dir *ledger.Directory) error {
		usernames := dir.ListCustomers()
		views = make([]dto.CustomerView, 0, len(usernames))
		for _, username := range usernames {
			c, err := dir.FindCustomer(username)
			if err != nil {
				return err
			}
			views = append(views, customerView(c))
		}
		return nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", views)
}

func (h *StaffHandler) handleCustomer(w http.ResponseWriter, r *http.Request) {
	var view dto.CustomerView
	err := h.ledger.Do(func(dir *ledger.Directory) error {
		c, err := dir.FindCustomer(r.PathValue("username"))
		if err != nil {
			return err
		}
		view = customerView(c)
		return nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", view)
}

func (h *StaffHandler) handleAction(w http.ResponseWriter, r *http.Request) {
	action, ok := staffActions[r.PathValue("action")]
	if !ok {
		respond.Error(w, http.StatusNotFound, "unknown action")
		return
	}
	username := r.PathValue("username")
	if err := runLifecycle(h.ledger, r, action.op, username); err != nil {
		writeError(w, r, err)
		return
	}
	log := logger.FromContext(r.Context())
	log.Info().
		Str("staff", subject(r)).
		Str("customer", username).
		Str("account", r.PathValue("number")).
		Str("action", r.PathValue("action")).
		Msg("staff account action")
	respond.JSON(w, http.StatusOK, action.message, nil)
}
