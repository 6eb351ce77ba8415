package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/console-bank/internal/auth"
	"github.com/hongminglow/console-bank/internal/ledger"
	"github.com/hongminglow/console-bank/internal/storage"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testAPI struct {
	t       *testing.T
	handler http.Handler
	gateway storage.Gateway
}

var errStoreDown = errors.New("store down")

// switchableGateway fails every Set while down is true.
type switchableGateway struct {
	*storage.MemoryGateway
	down bool
	sets int
}

func (g *switchableGateway) Set(ctx context.Context, key string, blob []byte) error {
	if g.down {
		return errStoreDown
	}
	g.sets++
	return g.MemoryGateway.Set(ctx, key, blob)
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	return newTestAPIWithGateway(t, storage.NewMemoryGateway())
}

func newTestAPIWithGateway(t *testing.T, gw storage.Gateway) *testAPI {
	t.Helper()
	next := 0
	dir := ledger.NewDirectory(gw,
		ledger.WithStaff(ledger.StaffCredential{Username: "admin", Password: "admin123"}),
		ledger.WithNumberSource(func() (string, error) {
			next++
			return fmt.Sprintf("%010d", next), nil
		}),
	)
	require.NoError(t, dir.Hydrate(context.Background()))

	l := NewLedger(dir)
	tokens := auth.NewTokenManager("test-secret", "console-bank", time.Hour)
	mux := http.NewServeMux()
	NewHealthHandler(time.Now(), l).Register(mux)
	NewAuthHandler(l, tokens).Register(mux)
	NewCustomerHandler(l, tokens).Register(mux)
	NewStaffHandler(l, tokens).Register(mux)
	return &testAPI{t: t, handler: mux, gateway: gw}
}

func (a *testAPI) do(method, path, token string, body any) (int, envelope) {
	a.t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)

	var env envelope
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec.Code, env
}

// register creates username with a savings account (PIN 1234) and returns its token.
func (a *testAPI) register(username string) string {
	a.t.Helper()
	status, env := a.do(http.MethodPost, "/register", "", map[string]string{
		"username":     username,
		"password":     "secret",
		"name":         "Name " + username,
		"account_type": "savings",
		"pin":          "1234",
	})
	require.Equal(a.t, http.StatusCreated, status, env.Message)
	var out struct {
		Token string `json:"token"`
	}
	require.NoError(a.t, json.Unmarshal(env.Data, &out))
	return out.Token
}

func (a *testAPI) staffToken() string {
	a.t.Helper()
	status, env := a.do(http.MethodPost, "/staff/login", "", map[string]string{"username": "admin", "password": "admin123"})
	require.Equal(a.t, http.StatusOK, status)
	var out struct {
		Token string `json:"token"`
		Role  string `json:"role"`
	}
	require.NoError(a.t, json.Unmarshal(env.Data, &out))
	require.Equal(a.t, auth.RoleStaff, out.Role)
	return out.Token
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

type balanceBody struct {
	Account string          `json:"account"`
	Balance decimal.Decimal `json:"balance"`
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)
	api.register("ada")

	status, env := api.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	body := decodeData[map[string]any](t, env)
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 1, body["customers"])
}

func TestRegisterAndLogin(t *testing.T) {
	api := newTestAPI(t)
	api.register("ada")

	status, env := api.do(http.MethodPost, "/login", "", map[string]string{"username": "ada", "password": "secret"})
	require.Equal(t, http.StatusOK, status)
	login := decodeData[struct {
		Token string `json:"token"`
	}](t, env)

	status, env = api.do(http.MethodGet, "/me", login.Token, nil)
	require.Equal(t, http.StatusOK, status)
	me := decodeData[struct {
		Username string `json:"username"`
		Name     string `json:"name"`
		Accounts []struct {
			Number string `json:"number"`
			Type   string `json:"type"`
			State  string `json:"state"`
		} `json:"accounts"`
	}](t, env)
	assert.Equal(t, "ada", me.Username)
	assert.Equal(t, "Name ada", me.Name)
	require.Len(t, me.Accounts, 1)
	assert.Equal(t, "0000000001", me.Accounts[0].Number)
	assert.Equal(t, "savings", me.Accounts[0].Type)
	assert.Equal(t, "active-unfrozen", me.Accounts[0].State)

	status, _ = api.do(http.MethodPost, "/login", "", map[string]string{"username": "ada", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = api.do(http.MethodPost, "/login", "", map[string]string{"username": "nobody", "password": "secret"})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestRegisterValidation(t *testing.T) {
	api := newTestAPI(t)
	api.register("ada")

	cases := []struct {
		name   string
		body   any
		status int
	}{
		{"duplicate username", map[string]string{"username": "ada", "password": "secret"}, http.StatusConflict},
		{"short username", map[string]string{"username": "ab", "password": "secret"}, http.StatusBadRequest},
		{"username with space", map[string]string{"username": "a da", "password": "secret"}, http.StatusBadRequest},
		{"short password", map[string]string{"username": "bob", "password": "abc"}, http.StatusBadRequest},
		{"bad account type", map[string]string{"username": "bob", "password": "secret", "account_type": "gold", "pin": "1234"}, http.StatusBadRequest},
		{"account without pin", map[string]string{"username": "bob", "password": "secret", "account_type": "savings"}, http.StatusBadRequest},
		{"pin with letters", map[string]string{"username": "bob", "password": "secret", "account_type": "savings", "pin": "12a4"}, http.StatusBadRequest},
		{"numeric pin", `{"username":"bob","password":"secret","account_type":"savings","pin":1234}`, http.StatusBadRequest},
		{"malformed json", `{"username":`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, _ := api.do(http.MethodPost, "/register", "", tc.body)
			assert.Equal(t, tc.status, status)
		})
	}

	status, env := api.do(http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, decodeData[map[string]any](t, env)["customers"])
}

func TestRegisterWithAccountIsAtomic(t *testing.T) {
	gw := &switchableGateway{MemoryGateway: storage.NewMemoryGateway()}
	api := newTestAPIWithGateway(t, gw)
	body := map[string]string{
		"username":     "ada",
		"password":     "secret",
		"account_type": "savings",
		"pin":          "1234",
	}

	gw.down = true
	status, env := api.do(http.MethodPost, "/register", "", body)
	require.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "internal server error", env.Message)

	status, env = api.do(http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 0, decodeData[map[string]any](t, env)["customers"])

	gw.down = false
	status, env = api.do(http.MethodPost, "/register", "", body)
	require.Equal(t, http.StatusCreated, status, env.Message)
	assert.Equal(t, 1, gw.sets, "registration with an account is a single write")
	created := decodeData[struct {
		Customer struct {
			Accounts []struct {
				Number string `json:"number"`
			} `json:"accounts"`
		} `json:"customer"`
	}](t, env)
	require.Len(t, created.Customer.Accounts, 1)
}

func TestValidationDetails(t *testing.T) {
	api := newTestAPI(t)
	status, env := api.do(http.MethodPost, "/register", "", map[string]string{"username": "bob"})
	require.Equal(t, http.StatusBadRequest, status)

	details := decodeData[[]FieldError](t, env)
	require.Len(t, details, 1)
	assert.Equal(t, "password", details[0].Field)
	assert.Equal(t, "required", details[0].Type)
}

func TestDepositWithdraw(t *testing.T) {
	api := newTestAPI(t)
	token := api.register("ada")

	status, env := api.do(http.MethodPost, "/accounts/0000000001/deposit", token, map[string]any{"pin": "1234", "amount": "100.50"})
	require.Equal(t, http.StatusOK, status, env.Message)
	assert.True(t, decodeData[balanceBody](t, env).Balance.Equal(decimal.RequireFromString("100.50")))

	status, env = api.do(http.MethodPost, "/accounts/0000000001/withdraw", token, `{"pin":"1234","amount":40}`)
	require.Equal(t, http.StatusOK, status, env.Message)
	assert.True(t, decodeData[balanceBody](t, env).Balance.Equal(decimal.RequireFromString("60.50")))

	cases := []struct {
		name   string
		path   string
		body   any
		status int
	}{
		{"wrong pin", "/accounts/0000000001/deposit", map[string]any{"pin": "9999", "amount": "1"}, http.StatusForbidden},
		{"zero amount", "/accounts/0000000001/deposit", map[string]any{"pin": "1234", "amount": "0"}, http.StatusBadRequest},
		{"negative amount", "/accounts/0000000001/withdraw", map[string]any{"pin": "1234", "amount": "-5"}, http.StatusBadRequest},
		{"overdraw", "/accounts/0000000001/withdraw", map[string]any{"pin": "1234", "amount": "60.51"}, http.StatusUnprocessableEntity},
		{"unknown account", "/accounts/0000000099/deposit", map[string]any{"pin": "1234", "amount": "1"}, http.StatusNotFound},
		{"missing pin", "/accounts/0000000001/deposit", map[string]any{"amount": "1"}, http.StatusBadRequest},
		{"too many decimals", "/accounts/0000000001/deposit", map[string]any{"pin": "1234", "amount": "0.001"}, http.StatusBadRequest},
		{"extreme scale", "/accounts/0000000001/deposit", `{"pin":"1234","amount":"1e-30000000"}`, http.StatusBadRequest},
		{"extreme magnitude", "/accounts/0000000001/deposit", `{"pin":"1234","amount":1e30000000}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, _ := api.do(http.MethodPost, tc.path, token, tc.body)
			assert.Equal(t, tc.status, status)
		})
	}

	status, env = api.do(http.MethodGet, "/accounts/0000000001/transactions", token, nil)
	require.Equal(t, http.StatusOK, status)
	txs := decodeData[[]struct {
		Kind   string          `json:"kind"`
		Amount decimal.Decimal `json:"amount"`
		Status string          `json:"status"`
	}](t, env)
	require.Len(t, txs, 2)
	assert.Equal(t, "deposit", txs[0].Kind)
	assert.Equal(t, "withdraw", txs[1].Kind)
	assert.Equal(t, "success", txs[1].Status)
	assert.True(t, txs[1].Amount.Equal(decimal.NewFromInt(40)))
}

func TestTransfer(t *testing.T) {
	api := newTestAPI(t)
	ada := api.register("ada")
	bob := api.register("bob")

	status, _ := api.do(http.MethodPost, "/accounts/0000000001/deposit", ada, map[string]any{"pin": "1234", "amount": "100"})
	require.Equal(t, http.StatusOK, status)

	status, env := api.do(http.MethodPost, "/accounts/0000000001/transfer", ada, map[string]any{
		"pin": "1234", "amount": "30", "target_username": "bob", "target_account": "0000000002",
	})
	require.Equal(t, http.StatusOK, status, env.Message)
	assert.True(t, decodeData[balanceBody](t, env).Balance.Equal(decimal.NewFromInt(70)))

	status, env = api.do(http.MethodGet, "/accounts/0000000002", bob, nil)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, decodeData[balanceBody](t, env).Balance.Equal(decimal.NewFromInt(30)))

	cases := []struct {
		name   string
		body   map[string]any
		status int
	}{
		{"same account", map[string]any{"pin": "1234", "amount": "1", "target_username": "ada", "target_account": "0000000001"}, http.StatusBadRequest},
		{"unknown target customer", map[string]any{"pin": "1234", "amount": "1", "target_username": "zed", "target_account": "0000000002"}, http.StatusNotFound},
		{"target owned by someone else", map[string]any{"pin": "1234", "amount": "1", "target_username": "ada", "target_account": "0000000002"}, http.StatusNotFound},
		{"insufficient", map[string]any{"pin": "1234", "amount": "70.01", "target_username": "bob", "target_account": "0000000002"}, http.StatusUnprocessableEntity},
		{"wrong pin", map[string]any{"pin": "0000", "amount": "1", "target_username": "bob", "target_account": "0000000002"}, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, _ := api.do(http.MethodPost, "/accounts/0000000001/transfer", ada, tc.body)
			assert.Equal(t, tc.status, status)
		})
	}

	// Bob cannot see or move Ada's account.
	status, _ = api.do(http.MethodGet, "/accounts/0000000001", bob, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAccountLifecycle(t *testing.T) {
	api := newTestAPI(t)
	ada := api.register("ada")
	staff := api.staffToken()

	status, _ := api.do(http.MethodPost, "/accounts/0000000001/freeze", ada, nil)
	require.Equal(t, http.StatusOK, status)
	status, env := api.do(http.MethodPost, "/accounts/0000000001/deposit", ada, map[string]any{"pin": "1234", "amount": "1"})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, ledger.ErrAccountFrozen.Error(), env.Message)

	status, _ = api.do(http.MethodPost, "/accounts/0000000001/unfreeze", ada, nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = api.do(http.MethodPost, "/accounts/0000000001/close", ada, nil)
	require.Equal(t, http.StatusOK, status)

	status, env = api.do(http.MethodPost, "/accounts/0000000001/deposit", ada, map[string]any{"pin": "1234", "amount": "1"})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, ledger.ErrAccountClosed.Error(), env.Message)

	// Reactivation is staff-only.
	status, _ = api.do(http.MethodPost, "/accounts/0000000001/reactivate", ada, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = api.do(http.MethodPost, "/staff/customers/ada/accounts/0000000001/reactivate", staff, nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = api.do(http.MethodPost, "/accounts/0000000001/deposit", ada, map[string]any{"pin": "1234", "amount": "1"})
	assert.Equal(t, http.StatusOK, status)
}

func TestOpenAccountAndChangePin(t *testing.T) {
	api := newTestAPI(t)
	ada := api.register("ada")

	status, env := api.do(http.MethodPost, "/accounts", ada, map[string]string{"account_type": "current", "pin": "4321"})
	require.Equal(t, http.StatusCreated, status, env.Message)
	opened := decodeData[struct {
		Number string `json:"number"`
		Type   string `json:"type"`
	}](t, env)
	assert.Equal(t, "0000000002", opened.Number)
	assert.Equal(t, "current", opened.Type)

	status, _ = api.do(http.MethodPost, "/accounts/0000000002/pin", ada, map[string]string{"old_pin": "0000", "new_pin": "5555"})
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = api.do(http.MethodPost, "/accounts/0000000002/pin", ada, map[string]string{"old_pin": "4321", "new_pin": "55"})
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = api.do(http.MethodPost, "/accounts/0000000002/pin", ada, map[string]string{"old_pin": "4321", "new_pin": "5555"})
	require.Equal(t, http.StatusOK, status)

	status, _ = api.do(http.MethodPost, "/accounts/0000000002/deposit", ada, map[string]any{"pin": "5555", "amount": "5"})
	assert.Equal(t, http.StatusOK, status)
}

func TestProfileAndPassword(t *testing.T) {
	api := newTestAPI(t)
	ada := api.register("ada")

	status, env := api.do(http.MethodPatch, "/me", ada, map[string]string{"address": "1 Main St", "email": "ada@example.com"})
	require.Equal(t, http.StatusOK, status, env.Message)
	me := decodeData[struct {
		Name    string `json:"name"`
		Address string `json:"address"`
		Email   string `json:"email"`
	}](t, env)
	assert.Equal(t, "Name ada", me.Name)
	assert.Equal(t, "1 Main St", me.Address)
	assert.Equal(t, "ada@example.com", me.Email)

	status, _ = api.do(http.MethodPatch, "/me", ada, map[string]string{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = api.do(http.MethodPost, "/me/password", ada, map[string]string{"old_password": "nope", "new_password": "another"})
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = api.do(http.MethodPost, "/me/password", ada, map[string]string{"old_password": "secret", "new_password": "another"})
	require.Equal(t, http.StatusOK, status)

	status, _ = api.do(http.MethodPost, "/login", "", map[string]string{"username": "ada", "password": "another"})
	assert.Equal(t, http.StatusOK, status)
}

func TestStaffRoutes(t *testing.T) {
	api := newTestAPI(t)
	ada := api.register("ada")
	api.register("bob")
	staff := api.staffToken()

	status, env := api.do(http.MethodGet, "/staff/customers", staff, nil)
	require.Equal(t, http.StatusOK, status)
	list := decodeData[[]struct {
		Username string `json:"username"`
	}](t, env)
	require.Len(t, list, 2)
	assert.Equal(t, "ada", list[0].Username)
	assert.Equal(t, "bob", list[1].Username)

	status, _ = api.do(http.MethodGet, "/staff/customers/zed", staff, nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = api.do(http.MethodPost, "/staff/customers/ada/accounts/0000000001/explode", staff, nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = api.do(http.MethodPost, "/staff/customers/ada/accounts/0000000002/freeze", staff, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = api.do(http.MethodPost, "/staff/customers/ada/accounts/0000000001/freeze", staff, nil)
	require.Equal(t, http.StatusOK, status)
	status, env = api.do(http.MethodGet, "/staff/customers/ada", staff, nil)
	require.Equal(t, http.StatusOK, status)
	view := decodeData[struct {
		Accounts []struct {
			State string `json:"state"`
		} `json:"accounts"`
	}](t, env)
	require.Len(t, view.Accounts, 1)
	assert.Equal(t, "active-frozen", view.Accounts[0].State)

	// Customers cannot reach staff routes and staff cannot act as customers.
	status, _ = api.do(http.MethodGet, "/staff/customers", ada, nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = api.do(http.MethodGet, "/me", staff, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = api.do(http.MethodPost, "/staff/login", "", map[string]string{"username": "admin", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestMutationsArePersisted(t *testing.T) {
	api := newTestAPI(t)
	ada := api.register("ada")
	status, _ := api.do(http.MethodPost, "/accounts/0000000001/deposit", ada, map[string]any{"pin": "1234", "amount": "12.34"})
	require.Equal(t, http.StatusOK, status)

	blob, err := api.gateway.Get(context.Background(), ledger.DefaultSnapshotKey)
	require.NoError(t, err)
	assert.Contains(t, string(blob), `"balance":"12.34"`)
}
