package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/hongminglow/console-bank/internal/http/respond"
	"github.com/hongminglow/console-bank/internal/ledger"
	"github.com/hongminglow/console-bank/internal/logger"
	"github.com/hongminglow/console-bank/internal/models/dto"
)

const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	return v
}

// FieldError describes one failed validation rule.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

// decode reads a JSON body into dst and validates it. On failure it writes a 400 and
// returns false.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			respond.Error(w, http.StatusBadRequest, "invalid request data")
			return false
		}
		details := make([]FieldError, 0, len(verrs))
		for _, fe := range verrs {
			details = append(details, FieldError{Field: fe.Field(), Message: fieldMessage(fe), Type: fe.Tag()})
		}
		respond.ErrorWithData(w, http.StatusBadRequest, "invalid request data", details)
		return false
	}
	return true
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "invalid email format"
	case "min":
		return "value must be at least " + fe.Param() + " characters"
	case "len":
		return "value must be exactly " + fe.Param() + " characters"
	case "numeric":
		return "value must contain digits only"
	case "oneof":
		return "value must be one of: " + fe.Param()
	default:
		return "invalid value"
	}
}

// statusFor maps ledger errors to HTTP statuses. ok is false for errors that are not
// business rule violations.
func statusFor(err error) (status int, ok bool) {
	switch {
	case errors.Is(err, ledger.ErrPinMismatch):
		return http.StatusForbidden, true
	case errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrInvalidPin),
		errors.Is(err, ledger.ErrInvalidUsername),
		errors.Is(err, ledger.ErrInvalidPassword),
		errors.Is(err, ledger.ErrInvalidAccountType),
		errors.Is(err, ledger.ErrSameAccount):
		return http.StatusBadRequest, true
	case errors.Is(err, ledger.ErrAuthFailed):
		return http.StatusUnauthorized, true
	case errors.Is(err, ledger.ErrAccountNotFound), errors.Is(err, ledger.ErrCustomerNotFound):
		return http.StatusNotFound, true
	case errors.Is(err, ledger.ErrUsernameTaken):
		return http.StatusConflict, true
	case errors.Is(err, ledger.ErrAccountClosed),
		errors.Is(err, ledger.ErrAccountFrozen),
		errors.Is(err, ledger.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity, true
	default:
		return http.StatusInternalServerError, false
	}
}

// writeError reports err. Infrastructure failures are logged and hidden behind a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, ok := statusFor(err)
	if !ok {
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Str("path", r.URL.Path).Msg("ledger operation failed")
		respond.Error(w, status, "internal server error")
		return
	}
	respond.Error(w, status, err.Error())
}

func accountView(a *ledger.Account) dto.AccountView {
	return dto.AccountView{
		Number:   a.Number(),
		Type:     string(a.Type()),
		Balance:  a.Balance(),
		Active:   a.Active(),
		Frozen:   a.Frozen(),
		State:    a.State(),
		OpenedAt: a.OpenedAt(),
	}
}

func customerView(c *ledger.Customer) dto.CustomerView {
	p := c.Profile()
	accounts := c.Accounts()
	views := make([]dto.AccountView, 0, len(accounts))
	for _, a := range accounts {
		views = append(views, accountView(a))
	}
	return dto.CustomerView{
		Username: c.Username(),
		Name:     p.Name,
		Address:  p.Address,
		DOB:      p.DOB,
		Phone:    p.Phone,
		Email:    p.Email,
		Accounts: views,
	}
}

func transactionViews(txs []ledger.Transaction) []dto.TransactionView {
	out := make([]dto.TransactionView, 0, len(txs))
	for _, tx := range txs {
		out = append(out, dto.TransactionView{
			ID:        tx.ID,
			Kind:      string(tx.Kind),
			Amount:    tx.Amount,
			Status:    string(tx.Status),
			Detail:    tx.Detail,
			Timestamp: tx.Timestamp,
		})
	}
	return out
}
