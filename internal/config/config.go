package config

import (
	_ "embed"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kozaktomas/face-attendance/internal/constants"
)

//go:embed policy.yaml
var policyYAML []byte

type Config struct {
	Database  DatabaseConfig
	Embedding EmbeddingConfig
	Media     MediaConfig
	Web       WebConfig
	Auth      AuthConfig
	School    SchoolConfig
	Jobs      JobsConfig
	Policy    PolicyConfig
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type EmbeddingConfig struct {
	Backend    string // http | dlib (default http)
	URL        string // face embedding server, empty disables the http backend
	Dim        int    // expected embedding length (default 512)
	ModelsPath string // dlib model directory for the dlib backend
}

type MediaConfig struct {
	Root string // directory holding student photos and face samples
	URL  string // public prefix used to build photo URLs (default /media/)
}

// PhotoURL returns the public URL of a stored media path, or empty when the path is empty.
func (c *MediaConfig) PhotoURL(path string) string {
	if path == "" {
		return ""
	}
	return strings.TrimSuffix(c.URL, "/") + "/" + strings.TrimPrefix(path, "/")
}

// RoutePrefix returns the local path the media files are served under.
// An absolute URL contributes only its path; an empty path means /media/.
func (c *MediaConfig) RoutePrefix() string {
	path := c.URL
	if u, err := url.Parse(c.URL); err == nil {
		path = u.Path
	}
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return "/media/"
	}
	return "/" + trimmed + "/"
}

type WebConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
}

type AuthConfig struct {
	JWTSecret string
}

type SchoolConfig struct {
	Timezone string // IANA name, calendar dates are taken in this zone (default UTC)
}

// Location resolves the school timezone, falling back to UTC for unknown names.
func (c *SchoolConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type JobsConfig struct {
	EncodingBackfillInterval time.Duration // zero disables the backfill job
}

type PolicyConfig struct {
	Match  MatchPolicy  `yaml:"match"`
	Index  IndexPolicy  `yaml:"index"`
	Excuse ExcusePolicy `yaml:"excuse"`
	Image  ImagePolicy  `yaml:"image"`
}

type MatchPolicy struct {
	Tolerance      float64 `yaml:"tolerance"`
	DistanceMetric string  `yaml:"distance_metric"`
}

type IndexPolicy struct {
	FreshnessSeconds int `yaml:"freshness_seconds"`
}

// FreshnessWindow returns the index refresh window as a duration.
func (p IndexPolicy) FreshnessWindow() time.Duration {
	return time.Duration(p.FreshnessSeconds) * time.Second
}

type ExcusePolicy struct {
	DailyLimit int `yaml:"daily_limit"`
}

type ImagePolicy struct {
	MaxSide int `yaml:"max_side"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable as a positive float.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

// envDuration reads an environment variable as a Go duration ("10m", "1h").
// "0" or "off" disables the value.
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := strings.TrimSpace(os.Getenv(key))
	switch s {
	case "":
		return defaultVal
	case "0", "off":
		return 0
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func envList(key string) []string {
	var out []string
	for item := range strings.SplitSeq(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// loadPolicy parses the embedded policy file and applies environment overrides.
func loadPolicy() PolicyConfig {
	var policy PolicyConfig
	if err := yaml.Unmarshal(policyYAML, &policy); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded policy.yaml: " + err.Error())
	}

	policy.Match.Tolerance = envFloat("MATCH_TOLERANCE", policy.Match.Tolerance)
	policy.Match.DistanceMetric = strings.ToLower(envString("DISTANCE_METRIC", policy.Match.DistanceMetric))
	policy.Index.FreshnessSeconds = envInt("INDEX_FRESHNESS_SECONDS", policy.Index.FreshnessSeconds)
	policy.Excuse.DailyLimit = envInt("EXCUSE_DAILY_LIMIT", policy.Excuse.DailyLimit)
	policy.Image.MaxSide = envInt("IMAGE_MAX_SIDE", policy.Image.MaxSide)
	return policy
}

func Load() *Config {
	return &Config{
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Embedding: EmbeddingConfig{
			Backend:    strings.ToLower(envString("FACE_BACKEND", "http")),
			URL:        os.Getenv("EMBEDDING_URL"),
			Dim:        envInt("EMBEDDING_DIM", 512),
			ModelsPath: envString("DLIB_MODELS_PATH", "models"),
		},
		Media: MediaConfig{
			Root: envString("MEDIA_ROOT", "media"),
			URL:  mediaURL(envString("MEDIA_URL", "/media/")),
		},
		Web: WebConfig{
			Host:           envString("WEB_HOST", "0.0.0.0"),
			Port:           envInt("WEB_PORT", 8080),
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
		},
		Auth: AuthConfig{
			JWTSecret: os.Getenv("JWT_SECRET"),
		},
		School: SchoolConfig{
			Timezone: envString("SCHOOL_TIMEZONE", "UTC"),
		},
		Jobs: JobsConfig{
			EncodingBackfillInterval: envDuration("ENCODING_BACKFILL_INTERVAL", constants.DefaultEncodingBackfillInterval),
		},
		Policy: loadPolicy(),
	}
}

// mediaURL keeps photo URLs and the media route in agreement when MEDIA_URL is "/".
func mediaURL(v string) string {
	if strings.Trim(v, "/") == "" {
		return "/media/"
	}
	return v
}
