// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server timeouts,
// logging, the database, the chat model, document ingestion and storage,
// authorization, background jobs, rate limiting and observability.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
	Environment string  // DEPLOY_ENV (deployment.environment resource attribute)
}

// DBConfig selects and locates the database.
type DBConfig struct {
	Driver string // DB_DRIVER: sqlite|postgres
	Path   string // DB_PATH (sqlite)
	URL    string // DATABASE_URL (postgres)
}

// LLMConfig configures the chat and embedding models.
type LLMConfig struct {
	APIKey     string // GEMINI_API_KEY; empty runs the offline model
	ChatModel  string // CHAT_MODEL
	EmbedModel string // EMBED_MODEL
	Timeout    time.Duration
}

// IngestConfig bounds uploads and sizes the ingestion worker pool.
type IngestConfig struct {
	MaxFiles     int   // INGEST_MAX_FILES
	MaxFileBytes int64 // INGEST_MAX_FILE_BYTES
	Workers      int   // INGEST_WORKERS
	QueueSize    int   // INGEST_QUEUE_SIZE
	Readability  bool  // INGEST_READABILITY (HTML cleanup in docconv)
}

// StorageConfig selects where uploaded bytes live.
type StorageConfig struct {
	Driver    string // STORAGE_DRIVER: local|s3
	Dir       string // STORAGE_DIR (local)
	Bucket    string // S3_BUCKET
	Region    string // S3_REGION
	Endpoint  string // S3_ENDPOINT (MinIO etc.)
	AccessKey string // S3_ACCESS_KEY
	SecretKey string // S3_SECRET_KEY
	PathStyle bool   // S3_PATH_STYLE
}

// AuthzConfig configures the policy engine.
type AuthzConfig struct {
	PolicyFile          string // AUTHZ_POLICY_FILE; empty uses the built-in policy
	EnforceLessonAccess bool   // AUTHZ_ENFORCE_LESSON_ACCESS
}

// MentorConfig tunes conversations.
type MentorConfig struct {
	ContextTokens   int     // MENTOR_CONTEXT_TOKENS
	RetrievalK      int     // MENTOR_RETRIEVAL_K
	MinScore        float64 // MENTOR_MIN_SCORE in [0,1]
	MaxContentRunes int     // MENTOR_MAX_CONTENT_RUNES
	MaxToolRounds   int     // MENTOR_MAX_TOOL_ROUNDS
}

// JobsConfig schedules background work.
type JobsConfig struct {
	OutboxSchedule      string        // OUTBOX_SCHEDULE (cron spec)
	IdleSweepSchedule   string        // IDLE_SWEEP_SCHEDULE
	IdempotencySchedule string        // IDEMPOTENCY_PURGE_SCHEDULE
	ThreadIdleTimeout   time.Duration // THREAD_IDLE_TIMEOUT
	JobTimeout          time.Duration // JOB_TIMEOUT
}

// AuthConfig configures request authentication.
type AuthConfig struct {
	JWTSecret string // JWT_SECRET; empty trusts X-User-ID style headers
	JWTIssuer string // JWT_ISSUER; empty skips the issuer check
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // long enough for a model round trip
	IdleTimeout       time.Duration // e.g. 60s
	ShutdownTimeout   time.Duration // grace period for in-flight requests
	MaxHeaderBytes    int           // bytes
	MaxBodyBytes      int64         // JSON body cap; uploads use the ingest limits
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	DB      DBConfig
	LLM     LLMConfig
	Ingest  IngestConfig
	Storage StorageConfig
	Authz   AuthzConfig
	Mentor  MentorConfig
	Jobs    JobsConfig
	Auth    AuthConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 30*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 120*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout:   getdur("SHUTDOWN_TIMEOUT", 20*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		MaxBodyBytes:      getint64("MAX_BODY_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		DB: DBConfig{
			Driver: strings.ToLower(getenv("DB_DRIVER", "sqlite")),
			Path:   getenv("DB_PATH", "mentor.db"),
			URL:    getenv("DATABASE_URL", ""),
		},
		LLM: LLMConfig{
			APIKey:     getenv("GEMINI_API_KEY", ""),
			ChatModel:  getenv("CHAT_MODEL", "gemini-1.5-flash"),
			EmbedModel: getenv("EMBED_MODEL", "text-embedding-004"),
			Timeout:    getdur("LLM_TIMEOUT", 60*time.Second),
		},
		Ingest: IngestConfig{
			MaxFiles:     getint("INGEST_MAX_FILES", 3),
			MaxFileBytes: getint64("INGEST_MAX_FILE_BYTES", 10<<20),
			Workers:      getint("INGEST_WORKERS", 2),
			QueueSize:    getint("INGEST_QUEUE_SIZE", 64),
			Readability:  getbool("INGEST_READABILITY", false),
		},
		Storage: StorageConfig{
			Driver:    strings.ToLower(getenv("STORAGE_DRIVER", "local")),
			Dir:       getenv("STORAGE_DIR", "data/uploads"),
			Bucket:    getenv("S3_BUCKET", ""),
			Region:    getenv("S3_REGION", ""),
			Endpoint:  getenv("S3_ENDPOINT", ""),
			AccessKey: getenv("S3_ACCESS_KEY", ""),
			SecretKey: getenv("S3_SECRET_KEY", ""),
			PathStyle: getbool("S3_PATH_STYLE", false),
		},
		Authz: AuthzConfig{
			PolicyFile:          getenv("AUTHZ_POLICY_FILE", ""),
			EnforceLessonAccess: getbool("AUTHZ_ENFORCE_LESSON_ACCESS", false),
		},
		Mentor: MentorConfig{
			ContextTokens:   getint("MENTOR_CONTEXT_TOKENS", 6000),
			RetrievalK:      getint("MENTOR_RETRIEVAL_K", 4),
			MinScore:        getfloat("MENTOR_MIN_SCORE", 0.05),
			MaxContentRunes: getint("MENTOR_MAX_CONTENT_RUNES", 4000),
			MaxToolRounds:   getint("MENTOR_MAX_TOOL_ROUNDS", 3),
		},
		Jobs: JobsConfig{
			OutboxSchedule:      getenv("OUTBOX_SCHEDULE", "@every 5s"),
			IdleSweepSchedule:   getenv("IDLE_SWEEP_SCHEDULE", "@every 10m"),
			IdempotencySchedule: getenv("IDEMPOTENCY_PURGE_SCHEDULE", "@hourly"),
			ThreadIdleTimeout:   getdur("THREAD_IDLE_TIMEOUT", 24*time.Hour),
			JobTimeout:          getdur("JOB_TIMEOUT", time.Minute),
		},
		Auth: AuthConfig{
			JWTSecret: getenv("JWT_SECRET", ""),
			JWTIssuer: getenv("JWT_ISSUER", ""),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Idempotency
		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-mentor-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
			Environment: getenv("DEPLOY_ENV", ""),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if cfg.DB.Driver == "postgresql" {
		cfg.DB.Driver = "postgres"
	}

	return cfg, cfg.Validate()
}

// Validate reports the first invalid setting.
func (cfg Config) Validate() error {
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 || cfg.ShutdownTimeout <= 0 {
		return errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if cfg.MaxBodyBytes <= 0 {
		return errors.New("MAX_BODY_BYTES must be > 0")
	}

	switch cfg.DB.Driver {
	case "sqlite":
		if strings.TrimSpace(cfg.DB.Path) == "" {
			return errors.New("DB_PATH must not be empty")
		}
	case "postgres":
		if strings.TrimSpace(cfg.DB.URL) == "" {
			return errors.New("DATABASE_URL is required when DB_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("DB_DRIVER must be sqlite or postgres, got %q", cfg.DB.Driver)
	}

	if strings.TrimSpace(cfg.LLM.ChatModel) == "" {
		return errors.New("CHAT_MODEL must not be empty")
	}
	if cfg.LLM.Timeout <= 0 {
		return errors.New("LLM_TIMEOUT must be > 0")
	}

	if cfg.Ingest.MaxFiles < 1 {
		return errors.New("INGEST_MAX_FILES must be >= 1")
	}
	if cfg.Ingest.MaxFileBytes < 1 {
		return errors.New("INGEST_MAX_FILE_BYTES must be >= 1")
	}
	if cfg.Ingest.Workers < 1 || cfg.Ingest.QueueSize < 1 {
		return errors.New("INGEST_WORKERS and INGEST_QUEUE_SIZE must be >= 1")
	}

	switch cfg.Storage.Driver {
	case "local":
		if strings.TrimSpace(cfg.Storage.Dir) == "" {
			return errors.New("STORAGE_DIR must not be empty")
		}
	case "s3":
		if cfg.Storage.Bucket == "" || cfg.Storage.Region == "" {
			return errors.New("S3_BUCKET and S3_REGION are required when STORAGE_DRIVER=s3")
		}
	default:
		return fmt.Errorf("STORAGE_DRIVER must be local or s3, got %q", cfg.Storage.Driver)
	}

	if cfg.Mentor.ContextTokens < 0 {
		return errors.New("MENTOR_CONTEXT_TOKENS must be >= 0")
	}
	if cfg.Mentor.RetrievalK < 0 {
		return errors.New("MENTOR_RETRIEVAL_K must be >= 0")
	}
	if cfg.Mentor.MinScore < 0 || cfg.Mentor.MinScore > 1 {
		return errors.New("MENTOR_MIN_SCORE must be between 0 and 1")
	}
	if cfg.Mentor.MaxContentRunes < 1 {
		return errors.New("MENTOR_MAX_CONTENT_RUNES must be >= 1")
	}

	if cfg.Jobs.ThreadIdleTimeout <= 0 {
		return errors.New("THREAD_IDLE_TIMEOUT must be > 0")
	}
	if cfg.Jobs.JobTimeout <= 0 {
		return errors.New("JOB_TIMEOUT must be > 0")
	}

	if cfg.RateRPS < 0 {
		return errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}
	return nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getint64(k string, def int64) int64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
