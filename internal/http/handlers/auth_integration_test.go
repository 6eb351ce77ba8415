package handlers

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/console-bank/internal/auth"
	"github.com/hongminglow/console-bank/internal/ledger"
	"github.com/hongminglow/console-bank/internal/storage/postgres"
)

// TestAuthIntegration registers and logs in a customer against a live Postgres snapshot store,
// then checks a fresh directory hydrated from the same key sees the customer.
func TestAuthIntegration(t *testing.T) {
	if os.Getenv("RUN_AUTH_INTEGRATION") != "true" {
		t.Skip("set RUN_AUTH_INTEGRATION=true to run this integration test")
	}

	loadDotEnv()
	dbURL := mustGetEnv(t, "DATABASE_URL")

	ctx := context.Background()
	store, err := postgres.NewStore(ctx, dbURL)
	require.NoError(t, err)
	defer store.Close()

	key := fmt.Sprintf("authtest_%d", time.Now().UnixNano())
	dir := ledger.NewDirectory(store, ledger.WithSnapshotKey(key))
	require.NoError(t, dir.Hydrate(ctx))

	tokens := auth.NewTokenManager(mustGetEnv(t, "JWT_SECRET"), mustGetEnv(t, "JWT_ISSUER"), mustGetTTL(t))
	l := NewLedger(dir)
	mux := http.NewServeMux()
	NewAuthHandler(l, tokens).Register(mux)
	api := &testAPI{t: t, handler: mux}

	username := fmt.Sprintf("apitest_%d", time.Now().UnixNano())
	status, env := api.do(http.MethodPost, "/register", "", map[string]string{
		"username":     username,
		"password":     "Pass!word",
		"account_type": "current",
		"pin":          "2468",
	})
	require.Equal(t, http.StatusCreated, status, env.Message)

	status, env = api.do(http.MethodPost, "/login", "", map[string]string{"username": username, "password": "Pass!word"})
	require.Equal(t, http.StatusOK, status, env.Message)
	login := decodeData[struct {
		Token string `json:"token"`
	}](t, env)
	require.NotEmpty(t, strings.TrimSpace(login.Token))

	reloaded := ledger.NewDirectory(store, ledger.WithSnapshotKey(key))
	require.NoError(t, reloaded.Hydrate(ctx))
	c, err := reloaded.FindCustomer(username)
	require.NoError(t, err)
	require.Len(t, c.Accounts(), 1)

	t.Logf("registered %s under snapshot key %s and logged in via /login", username, key)
}

func mustGetEnv(t *testing.T, key string) string {
	t.Helper()
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		t.Fatalf("%s is required", key)
	}
	return val
}

func mustGetTTL(t *testing.T) time.Duration {
	t.Helper()
	minutesStr := mustGetEnv(t, "JWT_TTL_MINUTES")
	minutes, err := strconv.Atoi(minutesStr)
	if err != nil || minutes <= 0 {
		t.Fatalf("invalid JWT_TTL_MINUTES value: %q", minutesStr)
	}
	return time.Duration(minutes) * time.Minute
}

func loadDotEnv() {
	paths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}
	for _, path := range paths {
		_ = godotenv.Overload(path)
	}
}
