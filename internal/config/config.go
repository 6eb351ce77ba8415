package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage drivers accepted in STORAGE_DRIVER.
const (
	DriverFile     = "file"
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverGCS      = "gcs"
)

// Credential schemes accepted in CREDENTIAL_SCHEME.
const (
	SchemePlain  = "plain"
	SchemeBcrypt = "bcrypt"
)

// StaffAccount is one username/password pair from STAFF_CREDENTIALS.
type StaffAccount struct {
	Username string
	Password string
}

// Config holds runtime configuration sourced from env vars.
type Config struct {
	Port             string
	LogLevel         string
	StorageDriver    string
	SnapshotDir      string
	SnapshotKey      string
	DatabaseURL      string
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	GCSBucket        string
	GCSPrefix        string
	GCSEndpoint      string
	JWTSecret        string
	JWTIssuer        string
	JWTTTL           time.Duration
	CORSOrigins      []string
	Staff            []StaffAccount
	CredentialScheme string
}

// Load reads configuration from the environment and performs minimal validation.
func Load() (Config, error) {
	cfg := Config{
		Port:             fallback(os.Getenv("PORT"), "8080"),
		LogLevel:         fallback(os.Getenv("LOG_LEVEL"), "info"),
		StorageDriver:    strings.ToLower(fallback(os.Getenv("STORAGE_DRIVER"), DriverFile)),
		SnapshotDir:      fallback(os.Getenv("SNAPSHOT_DIR"), "data"),
		SnapshotKey:      fallback(os.Getenv("SNAPSHOT_KEY"), "bankCustomers"),
		DatabaseURL:      strings.TrimSpace(os.Getenv("DATABASE_URL")),
		RedisAddr:        fallback(os.Getenv("REDIS_ADDR"), "localhost:6379"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		GCSBucket:        strings.TrimSpace(os.Getenv("GCS_BUCKET")),
		GCSPrefix:        strings.TrimSpace(os.Getenv("GCS_PREFIX")),
		GCSEndpoint:      strings.TrimSpace(os.Getenv("GCS_ENDPOINT")),
		JWTSecret:        strings.TrimSpace(os.Getenv("JWT_SECRET")),
		JWTIssuer:        fallback(os.Getenv("JWT_ISSUER"), "console-bank"),
		CORSOrigins:      parseCSV(fallback(os.Getenv("CORS_ALLOWED_ORIGINS"), "*")),
		CredentialScheme: strings.ToLower(fallback(os.Getenv("CREDENTIAL_SCHEME"), SchemePlain)),
	}

	minutes := fallback(os.Getenv("JWT_TTL_MINUTES"), "60")
	if ttlMinutes, err := strconv.Atoi(minutes); err == nil && ttlMinutes > 0 {
		cfg.JWTTTL = time.Duration(ttlMinutes) * time.Minute
	} else {
		cfg.JWTTTL = 60 * time.Minute
	}

	db, err := strconv.Atoi(fallback(os.Getenv("REDIS_DB"), "0"))
	if err != nil || db < 0 {
		return Config{}, fmt.Errorf("REDIS_DB must be a non-negative integer, got %q", os.Getenv("REDIS_DB"))
	}
	cfg.RedisDB = db

	staff, err := parseStaff(fallback(os.Getenv("STAFF_CREDENTIALS"), "admin:admin123"))
	if err != nil {
		return Config{}, err
	}
	cfg.Staff = staff

	if cfg.JWTSecret == "" {
		return Config{}, errors.New("JWT_SECRET is required")
	}
	if err := cfg.validateStorage(); err != nil {
		return Config{}, err
	}
	switch cfg.CredentialScheme {
	case SchemePlain, SchemeBcrypt:
	default:
		return Config{}, fmt.Errorf("CREDENTIAL_SCHEME must be %q or %q, got %q", SchemePlain, SchemeBcrypt, cfg.CredentialScheme)
	}

	return cfg, nil
}

// HTTPAddress returns the host:port pair for the HTTP server to bind to.
func (c Config) HTTPAddress() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) validateStorage() error {
	switch c.StorageDriver {
	case DriverFile, DriverMemory, DriverRedis:
		return nil
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres storage driver")
		}
		return nil
	case DriverGCS:
		if c.GCSBucket == "" {
			return errors.New("GCS_BUCKET is required for the gcs storage driver")
		}
		return nil
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return strings.TrimSpace(value)
}

func parseCSV(input string) []string {
	parts := strings.Split(input, ",")
	var out []string
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

// parseStaff reads "user:pass,user2:pass2".
func parseStaff(input string) ([]StaffAccount, error) {
	var out []StaffAccount
	for _, entry := range parseCSV(input) {
		username, password, ok := strings.Cut(entry, ":")
		if !ok || strings.TrimSpace(username) == "" || password == "" {
			return nil, fmt.Errorf("STAFF_CREDENTIALS entry %q must look like user:password", entry)
		}
		out = append(out, StaffAccount{Username: strings.TrimSpace(username), Password: password})
	}
	return out, nil
}
