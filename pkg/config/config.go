package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Tracker    TrackerConfig
	Admin      AdminConfig
	School     SchoolConfig
	Classrooms []ClassroomGroup
	Records    RecordsConfig
	Reports    ReportsConfig
	Redis      RedisConfig
	CORS       CORSConfig
	Log        LogConfig
}

// TrackerConfig identifies the GitHub repository and Projects v2 board that
// act as the system of record.
type TrackerConfig struct {
	Owner      string
	Repo       string
	Token      string
	ProjectID  string
	APIBase    string
	GraphQLURL string
}

// AdminConfig gates the review endpoints behind a single shared credential.
type AdminConfig struct {
	PasswordHash   string
	SessionSecret  string
	SessionTimeout time.Duration
}

// SchoolConfig customises exported documents and issue bodies.
type SchoolConfig struct {
	Name string
}

// ClassroomGroup describes one grade level and how many rooms it has.
// "4/2" means grade 4, room 2.
type ClassroomGroup struct {
	Grade int
	Rooms int
}

// RecordsConfig tunes listing and snapshot caching.
type RecordsConfig struct {
	PageSize          int
	MaxBehaviorLength int
	MaxNameLength     int
	CacheTTL          time.Duration
	CacheEnabled      bool
}

// ReportsConfig configures asynchronous report generation.
type ReportsConfig struct {
	Enabled           bool
	StorageDir        string
	FilenamePrefix    string
	SignedURLSecret   string
	SignedURLTTL      time.Duration
	CleanupInterval   time.Duration
	WorkerConcurrency int
	WorkerRetries     int
	JobTTL            time.Duration
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Tracker = TrackerConfig{
		Owner:      v.GetString("GITHUB_OWNER"),
		Repo:       v.GetString("GITHUB_REPO"),
		Token:      v.GetString("GITHUB_TOKEN"),
		ProjectID:  v.GetString("GITHUB_PROJECT_V2_ID"),
		APIBase:    v.GetString("GITHUB_API_BASE"),
		GraphQLURL: v.GetString("GITHUB_GRAPHQL_URL"),
	}

	cfg.Admin = AdminConfig{
		PasswordHash:   v.GetString("ADMIN_PASSWORD_HASH"),
		SessionSecret:  v.GetString("ADMIN_SESSION_SECRET"),
		SessionTimeout: parseDuration(v.GetString("ADMIN_SESSION_TIMEOUT"), time.Hour),
	}

	cfg.School = SchoolConfig{Name: v.GetString("SCHOOL_NAME")}

	classrooms, err := parseClassrooms(v.GetString("CLASSROOMS"))
	if err != nil {
		return nil, err
	}
	cfg.Classrooms = classrooms

	cfg.Records = RecordsConfig{
		PageSize:          v.GetInt("RECORDS_PAGE_SIZE"),
		MaxBehaviorLength: v.GetInt("RECORDS_MAX_BEHAVIOR_LENGTH"),
		MaxNameLength:     v.GetInt("RECORDS_MAX_NAME_LENGTH"),
		CacheTTL:          parseDuration(v.GetString("RECORDS_CACHE_TTL"), 5*time.Minute),
		CacheEnabled:      v.GetBool("RECORDS_CACHE_ENABLED"),
	}

	cfg.Reports = ReportsConfig{
		Enabled:           v.GetBool("ENABLE_REPORTS"),
		StorageDir:        v.GetString("REPORTS_STORAGE_DIR"),
		FilenamePrefix:    v.GetString("REPORTS_FILENAME_PREFIX"),
		SignedURLSecret:   v.GetString("REPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:      parseDuration(v.GetString("REPORTS_SIGNED_URL_TTL"), 24*time.Hour),
		CleanupInterval:   parseDuration(v.GetString("REPORTS_CLEANUP_INTERVAL"), time.Hour),
		WorkerConcurrency: v.GetInt("REPORTS_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("REPORTS_WORKER_RETRIES"),
		JobTTL:            parseDuration(v.GetString("REPORTS_JOB_TTL"), 24*time.Hour),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("GITHUB_OWNER", "")
	v.SetDefault("GITHUB_REPO", "student-behavior-system")
	v.SetDefault("GITHUB_TOKEN", "")
	v.SetDefault("GITHUB_PROJECT_V2_ID", "")
	v.SetDefault("GITHUB_API_BASE", "https://api.github.com")
	v.SetDefault("GITHUB_GRAPHQL_URL", "https://api.github.com/graphql")

	v.SetDefault("ADMIN_PASSWORD_HASH", "")
	v.SetDefault("ADMIN_SESSION_SECRET", "dev_session_secret")
	v.SetDefault("ADMIN_SESSION_TIMEOUT", "1h")

	v.SetDefault("SCHOOL_NAME", "โรงเรียนตัวอย่าง")

	// "<grade>:<rooms>" pairs; ม.1 through ม.6 by default.
	v.SetDefault("CLASSROOMS", "1:12,2:10,3:10,4:12,5:12,6:12")

	v.SetDefault("RECORDS_PAGE_SIZE", 50)
	v.SetDefault("RECORDS_MAX_BEHAVIOR_LENGTH", 500)
	v.SetDefault("RECORDS_MAX_NAME_LENGTH", 100)
	v.SetDefault("RECORDS_CACHE_TTL", "5m")
	v.SetDefault("RECORDS_CACHE_ENABLED", false)

	v.SetDefault("ENABLE_REPORTS", false)
	v.SetDefault("REPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("REPORTS_FILENAME_PREFIX", "รายงานพฤติกรรมความดี")
	v.SetDefault("REPORTS_SIGNED_URL_SECRET", "dev_reports_secret")
	v.SetDefault("REPORTS_SIGNED_URL_TTL", "24h")
	v.SetDefault("REPORTS_CLEANUP_INTERVAL", "1h")
	v.SetDefault("REPORTS_WORKER_CONCURRENCY", 1)
	v.SetDefault("REPORTS_WORKER_RETRIES", 3)
	v.SetDefault("REPORTS_JOB_TTL", "24h")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

func parseClassrooms(raw string) ([]ClassroomGroup, error) {
	if raw == "" {
		return nil, nil
	}

	parts := strings.Split(raw, ",")
	groups := make([]ClassroomGroup, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		pieces := strings.SplitN(part, ":", 2)
		if len(pieces) != 2 {
			return nil, fmt.Errorf("invalid classroom entry %q, want <grade>:<rooms>", part)
		}
		grade, err := strconv.Atoi(strings.TrimSpace(pieces[0]))
		if err != nil {
			return nil, fmt.Errorf("invalid classroom grade in %q: %w", part, err)
		}
		rooms, err := strconv.Atoi(strings.TrimSpace(pieces[1]))
		if err != nil {
			return nil, fmt.Errorf("invalid classroom room count in %q: %w", part, err)
		}
		groups = append(groups, ClassroomGroup{Grade: grade, Rooms: rooms})
	}

	return groups, nil
}
