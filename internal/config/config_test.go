package config

import (
	"os"
	"reflect"
	"strings"
	"testing"
	"time"
)

// --- MustLoad ---

func TestMustLoad_PanicsOnInvalidConfig(t *testing.T) {
	t.Setenv("LOG_LEVEL", "verbose") // invalid -> Load() error
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("MustLoad should panic on invalid config")
		}
	}()
	_ = MustLoad()
}

func TestMustLoad_Success_NoPanic(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("MustLoad should not panic on valid defaults, got: %v", r)
		}
	}()
	cfg := MustLoad()
	if cfg.APIBasePath != "/api/v1" {
		t.Fatalf("API_BASE_PATH default expected '/api/v1', got %q", cfg.APIBasePath)
	}
}

// --- Load defaults ---

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.DB.Driver != "sqlite" || cfg.DB.Path != "mentor.db" {
		t.Fatalf("db defaults unexpected: %+v", cfg.DB)
	}
	if cfg.Ingest.MaxFiles != 3 || cfg.Ingest.MaxFileBytes != 10<<20 {
		t.Fatalf("ingest defaults unexpected: %+v", cfg.Ingest)
	}
	if cfg.Storage.Driver != "local" || cfg.Storage.Dir == "" {
		t.Fatalf("storage defaults unexpected: %+v", cfg.Storage)
	}
	if cfg.Jobs.OutboxSchedule != "@every 5s" || cfg.Jobs.IdleSweepSchedule != "@every 10m" || cfg.Jobs.ThreadIdleTimeout != 24*time.Hour {
		t.Fatalf("jobs defaults unexpected: %+v", cfg.Jobs)
	}
	if cfg.Authz.EnforceLessonAccess || cfg.Auth.JWTSecret != "" || cfg.LLM.APIKey != "" {
		t.Fatalf("auth defaults unexpected: %+v %+v", cfg.Authz, cfg.Auth)
	}
	if cfg.Mentor.RetrievalK != 4 || cfg.Mentor.MaxToolRounds != 3 {
		t.Fatalf("mentor defaults unexpected: %+v", cfg.Mentor)
	}
}

// --- Load success + normalization + parsing ---

func TestLoad_Success_Overrides(t *testing.T) {
	// Server
	t.Setenv("PORT", "8088")
	t.Setenv("READ_TIMEOUT", "2s")
	t.Setenv("READ_HEADER_TIMEOUT", "1s")
	t.Setenv("WRITE_TIMEOUT", "3s")
	t.Setenv("IDLE_TIMEOUT", "4s")
	t.Setenv("MAX_HEADER_BYTES", "8192")
	t.Setenv("MAX_BODY_BYTES", "2048")
	t.Setenv("GIN_MODE", "weird") // will normalize to "release"

	// Logging / Docs
	t.Setenv("LOG_LEVEL", "warning") // will normalize to "warn"
	t.Setenv("LOG_PRETTY", "yes")
	t.Setenv("SWAGGER_ENABLED", "on")
	t.Setenv("API_BASE_PATH", "api/v2/")

	// Domain groups
	t.Setenv("DB_DRIVER", "PostgreSQL")
	t.Setenv("DATABASE_URL", "postgres://u:p@db/mentor")
	t.Setenv("GEMINI_API_KEY", "k")
	t.Setenv("CHAT_MODEL", "gemini-pro")
	t.Setenv("INGEST_MAX_FILES", "5")
	t.Setenv("INGEST_MAX_FILE_BYTES", "1048576")
	t.Setenv("INGEST_WORKERS", "4")
	t.Setenv("STORAGE_DRIVER", "s3")
	t.Setenv("S3_BUCKET", "lessons")
	t.Setenv("S3_REGION", "eu-west-1")
	t.Setenv("S3_PATH_STYLE", "true")
	t.Setenv("AUTHZ_ENFORCE_LESSON_ACCESS", "1")
	t.Setenv("MENTOR_CONTEXT_TOKENS", "1000")
	t.Setenv("MENTOR_RETRIEVAL_K", "6")
	t.Setenv("THREAD_IDLE_TIMEOUT", "2h")
	t.Setenv("OUTBOX_SCHEDULE", "@every 1s")
	t.Setenv("JWT_SECRET", "s3cret")

	// Rate limiting (use invalids for parse to fall back to defaults)
	t.Setenv("RATE_RPS", "x")      // -> default 5.0
	t.Setenv("RATE_BURST", "nope") // -> default 10

	// Web protection
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.com , , http://b ")
	t.Setenv("ENABLE_HSTS", "TRUE")
	t.Setenv("HSTS_MAX_AGE", "24h")
	t.Setenv("IDEMPOTENCY_TTL", "48h")

	// OTEL
	t.Setenv("OTEL_ENABLED", "1")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "otel:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "0")
	t.Setenv("OTEL_SERVICE_NAME", "svc")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.75")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Port != "8088" ||
		cfg.ReadTimeout != 2*time.Second ||
		cfg.ReadHeaderTimeout != 1*time.Second ||
		cfg.WriteTimeout != 3*time.Second ||
		cfg.IdleTimeout != 4*time.Second ||
		cfg.MaxHeaderBytes != 8192 ||
		cfg.MaxBodyBytes != 2048 ||
		cfg.GinMode != "release" {
		t.Fatalf("server fields unexpected: %+v", cfg)
	}
	if cfg.LogLevel != "warn" || !cfg.LogPretty || !cfg.SwaggerEnabled || cfg.APIBasePath != "/api/v2" {
		t.Fatalf("logging/docs unexpected: %+v", cfg)
	}
	if cfg.DB.Driver != "postgres" || cfg.DB.URL != "postgres://u:p@db/mentor" {
		t.Fatalf("db unexpected: %+v", cfg.DB)
	}
	if cfg.LLM.APIKey != "k" || cfg.LLM.ChatModel != "gemini-pro" {
		t.Fatalf("llm unexpected: %+v", cfg.LLM)
	}
	if cfg.Ingest.MaxFiles != 5 || cfg.Ingest.MaxFileBytes != 1<<20 || cfg.Ingest.Workers != 4 {
		t.Fatalf("ingest unexpected: %+v", cfg.Ingest)
	}
	if cfg.Storage.Driver != "s3" || cfg.Storage.Bucket != "lessons" || !cfg.Storage.PathStyle {
		t.Fatalf("storage unexpected: %+v", cfg.Storage)
	}
	if !cfg.Authz.EnforceLessonAccess || cfg.Auth.JWTSecret != "s3cret" {
		t.Fatalf("auth unexpected: %+v %+v", cfg.Authz, cfg.Auth)
	}
	if cfg.Mentor.ContextTokens != 1000 || cfg.Mentor.RetrievalK != 6 {
		t.Fatalf("mentor unexpected: %+v", cfg.Mentor)
	}
	if cfg.Jobs.ThreadIdleTimeout != 2*time.Hour || cfg.Jobs.OutboxSchedule != "@every 1s" {
		t.Fatalf("jobs unexpected: %+v", cfg.Jobs)
	}
	if cfg.RateRPS != 5.0 || cfg.RateBurst != 10 {
		t.Fatalf("rate limiting unexpected: %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.CORS.AllowedOrigins, []string{"https://a.com", "http://b"}) {
		t.Fatalf("cors origins unexpected: %#v", cfg.CORS.AllowedOrigins)
	}
	if !cfg.Security.EnableHSTS || cfg.Security.HSTSMaxAge != 24*time.Hour {
		t.Fatalf("security unexpected: %+v", cfg.Security)
	}
	if cfg.IdempotencyTTL != 48*time.Hour {
		t.Fatalf("idempotency ttl unexpected: %v", cfg.IdempotencyTTL)
	}
	if !cfg.OTEL.Enabled || cfg.OTEL.Endpoint != "otel:4317" || cfg.OTEL.Insecure || cfg.OTEL.ServiceName != "svc" || cfg.OTEL.SampleRatio != 0.75 {
		t.Fatalf("otel unexpected: %+v", cfg.OTEL)
	}
}

// --- Load validations (each case triggers exactly one validation error) ---

func TestLoad_ValidationErrors(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"invalid LOG_LEVEL", map[string]string{"LOG_LEVEL": "verbose"}, "LOG_LEVEL"},
		{"empty PORT via spaces", map[string]string{"PORT": "   "}, "PORT must not be empty"},
		{"non-positive timeouts", map[string]string{"READ_TIMEOUT": "0s"}, "timeouts must be positive"},
		{"max header bytes", map[string]string{"MAX_HEADER_BYTES": "0"}, "MAX_HEADER_BYTES"},
		{"max body bytes", map[string]string{"MAX_BODY_BYTES": "-1"}, "MAX_BODY_BYTES"},
		{"empty DB_PATH", map[string]string{"DB_PATH": "   "}, "DB_PATH must not be empty"},
		{"postgres without url", map[string]string{"DB_DRIVER": "postgres"}, "DATABASE_URL"},
		{"unknown db driver", map[string]string{"DB_DRIVER": "mysql"}, "DB_DRIVER"},
		{"ingest max files", map[string]string{"INGEST_MAX_FILES": "0"}, "INGEST_MAX_FILES"},
		{"ingest workers", map[string]string{"INGEST_WORKERS": "0"}, "INGEST_WORKERS"},
		{"s3 without bucket", map[string]string{"STORAGE_DRIVER": "s3", "S3_REGION": "us-east-1"}, "S3_BUCKET"},
		{"unknown storage driver", map[string]string{"STORAGE_DRIVER": "gcs"}, "STORAGE_DRIVER"},
		{"min score out of range", map[string]string{"MENTOR_MIN_SCORE": "1.5"}, "MENTOR_MIN_SCORE"},
		{"idle timeout", map[string]string{"THREAD_IDLE_TIMEOUT": "0s"}, "THREAD_IDLE_TIMEOUT"},
		{"rate rps negative", map[string]string{"RATE_RPS": "-1"}, "RATE_RPS"},
		{"rate burst < 1", map[string]string{"RATE_BURST": "0"}, "RATE_BURST"},
		{"hsts max age negative", map[string]string{"HSTS_MAX_AGE": "-1s"}, "HSTS_MAX_AGE"},
		{"idempotency ttl", map[string]string{"IDEMPOTENCY_TTL": "0s"}, "IDEMPOTENCY_TTL"},
		{"otel sample ratio", map[string]string{"OTEL_TRACES_SAMPLER_ARG": "1.5"}, "OTEL_TRACES_SAMPLER_ARG"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); !containsErr(err, tc.want) {
				t.Fatalf("expected %s validation error, got: %v", tc.want, err)
			}
		})
	}
}

// --- helpers ---

func TestHelpers_getenv(t *testing.T) {
	t.Setenv("X_EMPTY", "")
	if getenv("X_EMPTY", "d") != "d" {
		t.Fatalf("getenv should fall back to default on empty var")
	}
	t.Setenv("X_SET", "val")
	if getenv("X_SET", "d") != "val" {
		t.Fatalf("getenv should read set value")
	}
}

func TestHelpers_numbersAndDurations(t *testing.T) {
	t.Setenv("F_VALID", "3.14")
	if getfloat("F_VALID", 0) != 3.14 {
		t.Fatalf("getfloat parse failed")
	}
	t.Setenv("F_BAD", "nope")
	if getfloat("F_BAD", 1.23) != 1.23 {
		t.Fatalf("getfloat default on bad parse failed")
	}
	t.Setenv("I_VALID", "42")
	if getint("I_VALID", 0) != 42 {
		t.Fatalf("getint parse failed")
	}
	t.Setenv("I64_VALID", "10485760")
	if getint64("I64_VALID", 0) != 10<<20 {
		t.Fatalf("getint64 parse failed")
	}
	t.Setenv("I64_BAD", "10MB")
	if getint64("I64_BAD", 7) != 7 {
		t.Fatalf("getint64 default on bad parse failed")
	}
	t.Setenv("D_VALID", "150ms")
	if getdur("D_VALID", time.Second) != 150*time.Millisecond {
		t.Fatalf("getdur parse failed")
	}
	t.Setenv("D_BAD", "zzz")
	if getdur("D_BAD", 2*time.Second) != 2*time.Second {
		t.Fatalf("getdur default on bad parse failed")
	}
}

func TestHelpers_getbool(t *testing.T) {
	for _, v := range []string{"1", "true", "TRUE", " yes ", "Y", "on", "On"} {
		t.Setenv("B_T", v)
		if !getbool("B_T", false) {
			t.Fatalf("getbool(%q) = false; want true", v)
		}
	}
	for _, v := range []string{"0", "false", "FALSE", " no ", "N", "off", "Off"} {
		t.Setenv("B_F", v)
		if getbool("B_F", true) {
			t.Fatalf("getbool(%q) = true; want false", v)
		}
	}
	t.Setenv("B_EMPTY", "")
	if !getbool("B_EMPTY", true) || getbool("B_EMPTY", false) {
		t.Fatalf("getbool default behavior unexpected")
	}
}

func TestHelpers_splitCSV_and_normalizeBasePath(t *testing.T) {
	if out := splitCSV(""); out != nil {
		t.Fatalf("splitCSV empty should return nil")
	}
	if got := splitCSV(" a, ,b ,  c  ,"); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("splitCSV mismatch: got %#v", got)
	}

	for in, want := range map[string]string{"": "/", "v1": "/v1", "/v1/": "/v1", " / ": "/"} {
		if got := normalizeBasePath(in); got != want {
			t.Fatalf("normalizeBasePath(%q) = %q, want %q", in, got, want)
		}
	}
}

// Ensure tests don't leak env to others.
func TestMain(m *testing.M) {
	os.Unsetenv("PORT")
	os.Exit(m.Run())
}

// containsErr reports whether err's message contains the given substring.
func containsErr(err error, want string) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), want)
}
