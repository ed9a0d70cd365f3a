package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// App is the process configuration, read from the environment.
type App struct {
	Port string

	GCPProjectID     string
	GCPLocation      string
	GeminiTextModel  string
	GeminiImageModel string
	GCSBucket        string // empty: images are returned inline as data URLs

	DictationEnabled bool

	ErrorHold    time.Duration
	MaxBatchSize int
	NoticeTTL    time.Duration
	StudioIdle   time.Duration // in-memory workspaces unused this long are dropped

	AllowedOrigins []string // websocket origins; empty allows any
}

func Load() (App, error) {
	a := App{
		Port:             envOr("PORT", "8080"),
		GCPProjectID:     os.Getenv("GCP_PROJECT_ID"),
		GCPLocation:      envOr("GCP_LOCATION", "us-central1"),
		GeminiTextModel:  os.Getenv("GEMINI_TEXT_MODEL"),
		GeminiImageModel: os.Getenv("GEMINI_IMAGE_MODEL"),
		GCSBucket:        os.Getenv("GCS_BUCKET"),
		AllowedOrigins:   envList("ALLOWED_ORIGINS"),
	}

	var err error
	if a.DictationEnabled, err = envBool("DICTATION_ENABLED", false); err != nil {
		return App{}, err
	}
	if a.ErrorHold, err = envDuration("ERROR_HOLD", 3*time.Second); err != nil {
		return App{}, err
	}
	if a.NoticeTTL, err = envDuration("NOTICE_TTL", 24*time.Hour); err != nil {
		return App{}, err
	}
	if a.StudioIdle, err = envDuration("STUDIO_IDLE_TTL", time.Hour); err != nil {
		return App{}, err
	}
	if a.MaxBatchSize, err = envInt("MAX_BATCH_SIZE", 8); err != nil {
		return App{}, err
	}
	if a.MaxBatchSize <= 0 {
		return App{}, fmt.Errorf("MAX_BATCH_SIZE must be > 0, got %d", a.MaxBatchSize)
	}

	if a.GCPProjectID == "" {
		return App{}, fmt.Errorf("GCP_PROJECT_ID environment variable is not set")
	}
	return a, nil
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// envList splits a comma-separated value, dropping empty items.
func envList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func envBool(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func envInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}
