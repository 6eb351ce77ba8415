package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/hongminglow/console-bank/internal/auth"
	"github.com/hongminglow/console-bank/internal/http/respond"
	"github.com/hongminglow/console-bank/internal/ledger"
	"github.com/hongminglow/console-bank/internal/middleware"
	"github.com/hongminglow/console-bank/internal/models/dto"
)

// CustomerHandler serves the signed-in customer's profile and accounts.
type CustomerHandler struct {
	ledger *Ledger
	tokens *auth.TokenManager
}

func NewCustomerHandler(l *Ledger, tokens *auth.TokenManager) *CustomerHandler {
	return &CustomerHandler{ledger: l, tokens: tokens}
}

// Register attaches customer routes; every route requires a customer token.
func (h *CustomerHandler) Register(mux *http.ServeMux) {
	protect := middleware.RequireRole(h.tokens, auth.RoleCustomer)
	handle := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, protect(fn))
	}

	handle("GET /me", h.handleMe)
	handle("PATCH /me", h.handleUpdateProfile)
	handle("POST /me/password", h.handleChangePassword)
	handle("POST /accounts", h.handleOpenAccount)
	handle("GET /accounts/{number}", h.handleAccount)
	handle("GET /accounts/{number}/transactions", h.handleTransactions)
	handle("POST /accounts/{number}/deposit", h.handleDeposit)
	handle("POST /accounts/{number}/withdraw", h.handleWithdraw)
	handle("POST /accounts/{number}/transfer", h.handleTransfer)
	handle("POST /accounts/{number}/pin", h.handleChangePin)
	handle("POST /accounts/{number}/close", h.handleLifecycle((*ledger.Directory).CloseAccount, "account closed"))
	handle("POST /accounts/{number}/freeze", h.handleLifecycle((*ledger.Directory).FreezeAccount, "account frozen"))
	handle("POST /accounts/{number}/unfreeze", h.handleLifecycle((*ledger.Directory).UnfreezeAccount, "account unfrozen"))
}

func subject(r *http.Request) string {
	claims, _ := middleware.ClaimsFrom(r.Context())
	return claims.Subject
}

func (h *CustomerHandler) handleMe(w http.ResponseWriter, r *http.Request) {
	var view dto.CustomerView
	err := h.ledger.Do(func(dir *ledger.Directory) error {
		c, err := dir.FindCustomer(subject(r))
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

func (h *CustomerHandler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req dto.ProfileRequest
	if !decode(w, r, &req) {
		return
	}
	update := ledger.Profile{
		Name:    strings.TrimSpace(req.Name),
		Address: strings.TrimSpace(req.Address),
		DOB:     strings.TrimSpace(req.DOB),
		Phone:   strings.TrimSpace(req.Phone),
		Email:   strings.TrimSpace(req.Email),
	}
	var view dto.CustomerView
	err := h.ledger.Do(func(dir *ledger.Directory) error {
		if err := dir.UpdateProfile(r.Context(), subject(r), update); err != nil {
			return err
		}
		c, err := dir.FindCustomer(subject(r))
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
	respond.JSON(w, http.StatusOK, "profile updated", view)
}

func (h *CustomerHandler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req dto.ChangePasswordRequest
	if !decode(w, r, &req) {
		return
	}
	err := h.ledger.Do(func(dir *ledger.Directory) error {
		return dir.ChangePassword(r.Context(), subject(r), req.OldPassword, req.NewPassword)
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, "password changed", nil)
}

func (h *CustomerHandler) handleOpenAccount(w http.ResponseWriter, r *http.Request) {
	var req dto.OpenAccountRequest
	if !decode(w, r, &req) {
		return
	}
	var view dto.AccountView
	err := h.ledger.Do(func(dir *ledger.Directory) error {
		acc, err := dir.OpenAccount(r.Context(), subject(r), ledger.AccountType(req.AccountType), req.Pin)
		if err != nil {
			return err
		}
		view = accountView(acc)
		return nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, "account opened", view)
}

func (h *CustomerHandler) handleAccount(w http.ResponseWriter, r *http.Request) {
	var view dto.AccountView
	err := h.withAccount(r, func(acc *ledger.Account) { view = accountView(acc) })
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", view)
}

func (h *CustomerHandler) handleTransactions(w http.ResponseWriter, r *http.Request) {
	var views []dto.TransactionView
	err := h.withAccount(r, func(acc *ledger.Account) { views = transactionViews(acc.Transactions()) })
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", views)
}

func (h *CustomerHandler) handleDeposit(w http.ResponseWriter, r *http.Request) {
	h.handleMoney(w, r, (*ledger.Directory).Deposit, "deposit successful")
}

func (h *CustomerHandler) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	h.handleMoney(w, r, (*ledger.Directory).Withdraw, "withdrawal successful")
}

type moneyOp func(dir *ledger.Directory, ctx context.Context, username, number, pin string, amount decimal.Decimal) (decimal.Decimal, error)

func (h *CustomerHandler) handleMoney(w http.ResponseWriter, r *http.Request, op moneyOp, message string) {
	var req dto.MoneyRequest
	if !decode(w, r, &req) {
		return
	}
	number := r.PathValue("number")
	var balance decimal.Decimal
	err := h.ledger.Do(func(dir *ledger.Directory) error {
		var err error
		balance, err = op(dir, r.Context(), subject(r), number, req.Pin, req.Amount)
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, message, dto.BalanceResponse{Account: number, Balance: balance})
}

func (h *CustomerHandler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req dto.TransferRequest
	if !decode(w, r, &req) {
		return
	}
	number := r.PathValue("number")
	var balance decimal.Decimal
	err := h.ledger.Do(func(dir *ledger.Directory) error {
		username := subject(r)
		if err := dir.Transfer(r.Context(), username, number, req.Pin,
			strings.TrimSpace(req.TargetUsername), strings.TrimSpace(req.TargetAccount), req.Amount); err != nil {
			return err
		}
		c, err := dir.FindCustomer(username)
		if err != nil {
			return err
		}
		acc, err := c.GetAccount(number)
		if err != nil {
			return err
		}
		balance = acc.Balance()
		return nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, "transfer successful", dto.BalanceResponse{Account: number, Balance: balance})
}

func (h *CustomerHandler) handleChangePin(w http.ResponseWriter, r *http.Request) {
	var req dto.ChangePinRequest
	if !decode(w, r, &req) {
		return
	}
	err := h.ledger.Do(func(dir *ledger.Directory) error {
		return dir.ChangePin(r.Context(), subject(r), r.PathValue("number"), req.OldPin, req.NewPin)
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, "pin changed", nil)
}

type lifecycleOp func(dir *ledger.Directory, ctx context.Context, username, number string) error

func (h *CustomerHandler) handleLifecycle(op lifecycleOp, message string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := runLifecycle(h.ledger, r, op, subject(r)); err != nil {
			writeError(w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, message, nil)
	}
}

func (h *CustomerHandler) withAccount(r *http.Request, fn func(*ledger.Account)) error {
	return h.ledger.Do(func(dir *ledger.Directory) error {
		c, err := dir.FindCustomer(subject(r))
		if err != nil {
			return err
		}
		acc, err := c.GetAccount(r.PathValue("number"))
		if err != nil {
			return err
		}
		fn(acc)
		return nil
	})
}

func runLifecycle(l *Ledger, r *http.Request, op lifecycleOp, username string) error {
	return l.Do(func(dir *ledger.Directory) error {
		return op(dir, r.Context(), username, r.PathValue("number"))
	})
}
