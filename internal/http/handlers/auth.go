package handlers

import (
	"net/http"
	"strings"

	"github.com/hongminglow/console-bank/internal/auth"
	"github.com/hongminglow/console-bank/internal/http/respond"
	"github.com/hongminglow/console-bank/internal/ledger"
	"github.com/hongminglow/console-bank/internal/logger"
	"github.com/hongminglow/console-bank/internal/models/dto"
)

// AuthHandler owns registration and the customer and staff login endpoints.
type AuthHandler struct {
	ledger *Ledger
	tokens *auth.TokenManager
}

// NewAuthHandler constructs the handler.
func NewAuthHandler(l *Ledger, tokens *auth.TokenManager) *AuthHandler {
	return &AuthHandler{ledger: l, tokens: tokens}
}

// Register attaches auth routes to the mux.
func (h *AuthHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /register", h.handleRegister)
	mux.HandleFunc("POST /login", h.handleLogin)
	mux.HandleFunc("POST /staff/login", h.handleStaffLogin)
}

func (h *AuthHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if !decode(w, r, &req) {
		return
	}
	username := strings.TrimSpace(req.Username)
	profile := ledger.Profile{
		Name:    strings.TrimSpace(req.Name),
		Address: strings.TrimSpace(req.Address),
		DOB:     strings.TrimSpace(req.DOB),
		Phone:   strings.TrimSpace(req.Phone),
		Email:   strings.TrimSpace(req.Email),
	}

	var view dto.CustomerView
	err := h.ledger.Do(func(dir *ledger.Directory) error {
		var (
			c   *ledger.Customer
			err error
		)
		if req.AccountType != "" {
			first := ledger.FirstAccount{Type: ledger.AccountType(req.AccountType), Pin: req.Pin}
			c, _, err = dir.RegisterCustomerWithAccount(r.Context(), username, req.Password, profile, first)
		} else {
			c, err = dir.RegisterCustomer(r.Context(), username, req.Password, profile)
		}
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

	token, err := h.tokens.Generate(username, auth.RoleCustomer)
	if err != nil {
		respond.Error(w, http.StatusInternalServerError, "failed to generate token")
		return
	}
	log := logger.FromContext(r.Context())
	log.Info().Str("username", username).Int("accounts", len(view.Accounts)).Msg("customer registered")
	respond.JSON(w, http.StatusCreated, "customer registered", dto.RegisterResponse{Customer: view, Token: token})
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if !decode(w, r, &req) {
		return
	}
	username := strings.TrimSpace(req.Username)
	err := h.ledger.Do(func(dir *ledger.Directory) error {
		_, err := dir.AuthenticateCustomer(username, req.Password)
		return err
	})
	if err != nil {
		respond.Error(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	h.issue(w, username, auth.RoleCustomer)
}

func (h *AuthHandler) handleStaffLogin(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if !decode(w, r, &req) {
		return
	}
	username := strings.TrimSpace(req.Username)
	err := h.ledger.Do(func(dir *ledger.Directory) error {
		return dir.AuthenticateStaff(username, req.Password)
	})
	if err != nil {
		respond.Error(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	h.issue(w, username, auth.RoleStaff)
}

func (h *AuthHandler) issue(w http.ResponseWriter, subject, role string) {
	token, err := h.tokens.Generate(subject, role)
	if err != nil {
		respond.Error(w, http.StatusInternalServerError, "failed to generate token")
		return
	}
	respond.JSON(w, http.StatusOK, "login successful", dto.LoginResponse{Token: token, Role: role})
}
