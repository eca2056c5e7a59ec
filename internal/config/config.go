package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultSampleImageURL = "https://picsum.photos/seed/interior/1024/768"
	defaultEnvFile        = ".env"
)

// Config holds runtime configuration values.
type Config struct {
	Port        string        `yaml:"port"`
	DatabaseURL string        `yaml:"database_url"`
	RedisURL    string        `yaml:"redis_url"`
	LogLevel    string        `yaml:"log_level"`
	AI          AIConfig      `yaml:"ai"`
	Vertex      VertexConfig  `yaml:"vertex"`
	Media       MediaConfig   `yaml:"media"`
	Session     SessionConfig `yaml:"session"`
}

// AIConfig selects models and how strictly replies are checked.
type AIConfig struct {
	TextModel       string   `yaml:"text_model"`
	EditModel       string   `yaml:"edit_model"`
	ViewModel       string   `yaml:"view_model"`
	ViewAspectRatio string   `yaml:"view_aspect_ratio"`
	TimeoutSeconds  int      `yaml:"timeout_seconds"`
	ContractMode    string   `yaml:"contract_mode"`
	BaseURL         string   `yaml:"base_url"`
	CredentialEnv   []string `yaml:"credential_env"`
}

// Timeout converts TimeoutSeconds; zero disables the per-call timeout.
func (c AIConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// VertexConfig enables the Vertex AI Imagen backend for 3D/2D views.
type VertexConfig struct {
	ProjectID          string `yaml:"project_id"`
	Location           string `yaml:"location"`
	Model              string `yaml:"model"`
	APIKey             string `yaml:"api_key"`
	ServiceAccount     string `yaml:"service_account"`
	ServiceAccountJSON string `yaml:"service_account_json"`
}

// MediaConfig describes S3/media related configuration.
type MediaConfig struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	PublicURL       string `yaml:"public_url"`
	KeyPrefix       string `yaml:"key_prefix"`
	ForcePathStyle  bool   `yaml:"force_path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	LocalDir        string `yaml:"local_dir"`
}

// SessionConfig tunes design sessions.
type SessionConfig struct {
	TTLMinutes              int    `yaml:"ttl_minutes"`
	SurfaceEstimateErrors   bool   `yaml:"surface_estimate_errors"`
	SampleImageURL          string `yaml:"sample_image_url"`
	EstimateCacheTTLMinutes int    `yaml:"estimate_cache_ttl_minutes"`
}

// TTL is the idle expiry of a session.
func (c SessionConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

// EstimateCacheTTL is how long dimension estimates are reused. Zero turns the
// estimate cache off.
func (c SessionConfig) EstimateCacheTTL() time.Duration {
	return time.Duration(c.EstimateCacheTTLMinutes) * time.Minute
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		Port:     "8080",
		LogLevel: "info",
		AI: AIConfig{
			TimeoutSeconds: 120,
			ContractMode:   "strict",
		},
		Session: SessionConfig{
			TTLMinutes:     60,
			SampleImageURL: DefaultSampleImageURL,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file, an
// optional .env file and finally the process environment. An empty path
// skips the YAML file; an empty envFile tries ./.env.
func Load(path, envFile string) (Config, error) {
	if err := loadEnvFile(envFile); err != nil {
		return Config{}, err
	}

	cfg := Defaults()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromEnv loads configuration from environment variables and applies defaults.
func FromEnv() (Config, error) {
	cfg := Defaults()
	applyEnv(&cfg)
	return cfg, cfg.Validate()
}

// Validate rejects configurations the server cannot start with.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Port) == "" {
		errs = append(errs, errors.New("port cannot be empty"))
	}
	switch strings.ToLower(strings.TrimSpace(c.AI.ContractMode)) {
	case "", "strict", "lenient":
	default:
		errs = append(errs, fmt.Errorf("ai.contract_mode must be strict or lenient, got %q", c.AI.ContractMode))
	}
	if c.AI.TimeoutSeconds < 0 {
		errs = append(errs, errors.New("ai.timeout_seconds cannot be negative"))
	}
	if c.Session.TTLMinutes < 0 {
		errs = append(errs, errors.New("session.ttl_minutes cannot be negative"))
	}
	if (c.Media.AccessKeyID == "") != (c.Media.SecretAccessKey == "") {
		errs = append(errs, errors.New("media.access_key_id and media.secret_access_key must be set together"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

func loadEnvFile(envFile string) error {
	explicit := envFile != ""
	if !explicit {
		envFile = defaultEnvFile
	}
	if err := godotenv.Load(envFile); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: load %s: %w", envFile, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Port = getenv("APP_PORT", cfg.Port)
	cfg.DatabaseURL = getenv("DATABASE_URL", cfg.DatabaseURL)
	cfg.RedisURL = getenv("REDIS_URL", cfg.RedisURL)
	cfg.LogLevel = getenv("LOG_LEVEL", cfg.LogLevel)

	cfg.AI.TextModel = getenv("GEMINI_TEXT_MODEL", cfg.AI.TextModel)
	cfg.AI.EditModel = getenv("GEMINI_EDIT_MODEL", cfg.AI.EditModel)
	cfg.AI.ViewModel = getenv("GEMINI_VIEW_MODEL", cfg.AI.ViewModel)
	cfg.AI.ViewAspectRatio = getenv("VIEW_ASPECT_RATIO", cfg.AI.ViewAspectRatio)
	cfg.AI.TimeoutSeconds = getenvInt("AI_TIMEOUT_SECONDS", cfg.AI.TimeoutSeconds)
	cfg.AI.ContractMode = getenv("AI_CONTRACT_MODE", cfg.AI.ContractMode)
	cfg.AI.BaseURL = getenv("GEMINI_BASE_URL", cfg.AI.BaseURL)
	cfg.AI.CredentialEnv = getenvList("AI_CREDENTIAL_ENV", cfg.AI.CredentialEnv)

	cfg.Vertex.ProjectID = getenv("VERTEX_PROJECT_ID", cfg.Vertex.ProjectID)
	cfg.Vertex.Location = getenv("VERTEX_LOCATION", cfg.Vertex.Location)
	cfg.Vertex.Model = getenv("VERTEX_IMAGEN_MODEL", cfg.Vertex.Model)
	cfg.Vertex.APIKey = getenv("VERTEX_API_KEY", cfg.Vertex.APIKey)
	cfg.Vertex.ServiceAccount = getenv("VERTEX_SERVICE_ACCOUNT", cfg.Vertex.ServiceAccount)
	cfg.Vertex.ServiceAccountJSON = getenv("VERTEX_SERVICE_ACCOUNT_JSON", cfg.Vertex.ServiceAccountJSON)

	cfg.Media.Bucket = getenv("S3_BUCKET", cfg.Media.Bucket)
	cfg.Media.Region = getenv("S3_REGION", cfg.Media.Region)
	cfg.Media.Endpoint = getenv("S3_ENDPOINT", cfg.Media.Endpoint)
	cfg.Media.PublicURL = getenv("S3_PUBLIC_URL", cfg.Media.PublicURL)
	cfg.Media.KeyPrefix = strings.Trim(getenv("S3_KEY_PREFIX", cfg.Media.KeyPrefix), "/")
	cfg.Media.ForcePathStyle = getenvBool("S3_FORCE_PATH_STYLE", cfg.Media.ForcePathStyle)
	cfg.Media.AccessKeyID = getenv("S3_ACCESS_KEY_ID", cfg.Media.AccessKeyID)
	cfg.Media.SecretAccessKey = getenv("S3_SECRET_ACCESS_KEY", cfg.Media.SecretAccessKey)
	cfg.Media.LocalDir = getenv("MEDIA_LOCAL_DIR", cfg.Media.LocalDir)

	cfg.Session.TTLMinutes = getenvInt("SESSION_TTL_MINUTES", cfg.Session.TTLMinutes)
	cfg.Session.SurfaceEstimateErrors = getenvBool("SURFACE_ESTIMATE_ERRORS", cfg.Session.SurfaceEstimateErrors)
	cfg.Session.SampleImageURL = getenv("SAMPLE_IMAGE_URL", cfg.Session.SampleImageURL)
	cfg.Session.EstimateCacheTTLMinutes = getenvInt("ESTIMATE_CACHE_TTL_MINUTES", cfg.Session.EstimateCacheTTLMinutes)
}

func getenv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return fallback
}

func getenvBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}

	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}

	return parsed
}

func getenvInt(key string, fallback int) int {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}

	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}

	return parsed
}

func getenvList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}

	var out []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
