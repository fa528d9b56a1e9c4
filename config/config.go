package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Login     LoginConfig
	Query     QueryConfig
	Batch     BatchConfig
	Export    ExportConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Webhook   WebhookConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server (service mode only).
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// PortalURL is the portal login page.
	PortalURL string // default: the WEDI login endpoint

	// Headless controls whether the browser runs headless.
	Headless bool // default: false (manual CAPTCHA entry needs a window)

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// DownloadDir is where triggered file transfers land.
	DownloadDir string // default: "downloads"

	// PageTimeout bounds individual element waits.
	PageTimeout time.Duration // default: 10s
}

// LoginConfig controls the login state machine.
type LoginConfig struct {
	// MaxAttempts is the total login attempt budget per account.
	MaxAttempts int // default: 3

	// ManualCaptcha enables the manual-entry wait when the resolver fails.
	// Meaningless in headless mode, where the wait would always expire.
	ManualCaptcha bool // default: !Headless

	// ManualWait is how long to wait for an operator-typed CAPTCHA.
	ManualWait time.Duration // default: 20s

	// RetryDelay is the pause before reloading the login page after a
	// retryable failure.
	RetryDelay time.Duration // default: 2s

	// SubmitWait is the settle time after form submission before the
	// outcome landmark is checked.
	SubmitWait time.Duration // default: 3s
}

// QueryConfig carries the per-run query parameters shared by executors.
type QueryConfig struct {
	// StartDate and EndDate bound day-range queries (YYYYMMDD) or, for the
	// month-range variant, are reduced to YYYYMM. Empty means per-type
	// defaults (today, or the previous month).
	StartDate string
	EndDate   string

	// NavTimeout bounds each navigation landmark wait.
	NavTimeout time.Duration // default: 15s

	// DownloadDir is where extraction-produced files are written. Shares
	// the browser's download location so all of an account's files land
	// together.
	DownloadDir string // default: "downloads"
}

// BatchConfig controls the multi-account orchestrator.
type BatchConfig struct {
	// AccountsFile is the JSON account list path.
	AccountsFile string // default: "accounts.json"

	// Concurrency is the number of simultaneous sessions. 1 preserves the
	// strictly sequential reference behavior.
	Concurrency int // default: 1

	// AccountDelay is the pause between accounts in sequential mode.
	AccountDelay time.Duration // default: 3s
}

// ExportConfig controls where extracted records and reports are written.
type ExportConfig struct {
	Dir        string // default: "downloads"
	ReportsDir string // default: "reports"
}

// AuthConfig controls API key authentication (service mode).
type AuthConfig struct {
	Enabled bool // default: true
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting (service mode).
type RateLimitConfig struct {
	RequestsPerSecond float64 // default: 1
	Burst             int     // default: 3
}

// WebhookConfig controls batch completion notifications.
type WebhookConfig struct {
	URL    string
	Secret string
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	headless := envBoolOr("WEDI_HEADLESS", false)
	return &Config{
		Server: ServerConfig{
			Host: envOr("WEDI_HOST", "0.0.0.0"),
			Port: envIntOr("WEDI_PORT", 8080),
			Mode: envOr("WEDI_MODE", "release"),
		},
		Browser: BrowserConfig{
			PortalURL:   envOr("WEDI_PORTAL_URL", "http://wedinlb03.e-can.com.tw/wEDI2012/wedilogin.asp"),
			Headless:    headless,
			NoSandbox:   envBoolOr("WEDI_NO_SANDBOX", false),
			BrowserBin:  os.Getenv("WEDI_BROWSER_BIN"),
			DownloadDir: envOr("WEDI_DOWNLOAD_DIR", "downloads"),
			PageTimeout: envDurationOr("WEDI_PAGE_TIMEOUT", 10*time.Second),
		},
		Login: LoginConfig{
			MaxAttempts:   envIntOr("WEDI_LOGIN_MAX_ATTEMPTS", 3),
			ManualCaptcha: envBoolOr("WEDI_MANUAL_CAPTCHA", !headless),
			ManualWait:    envDurationOr("WEDI_MANUAL_CAPTCHA_WAIT", 20*time.Second),
			RetryDelay:    envDurationOr("WEDI_LOGIN_RETRY_DELAY", 2*time.Second),
			SubmitWait:    envDurationOr("WEDI_LOGIN_SUBMIT_WAIT", 3*time.Second),
		},
		Query: QueryConfig{
			StartDate:   os.Getenv("WEDI_START_DATE"),
			EndDate:     os.Getenv("WEDI_END_DATE"),
			NavTimeout:  envDurationOr("WEDI_NAV_TIMEOUT", 15*time.Second),
			DownloadDir: envOr("WEDI_DOWNLOAD_DIR", "downloads"),
		},
		Batch: BatchConfig{
			AccountsFile: envOr("WEDI_ACCOUNTS_FILE", "accounts.json"),
			Concurrency:  envIntOr("WEDI_CONCURRENCY", 1),
			AccountDelay: envDurationOr("WEDI_ACCOUNT_DELAY", 3*time.Second),
		},
		Export: ExportConfig{
			Dir:        envOr("WEDI_EXPORT_DIR", "downloads"),
			ReportsDir: envOr("WEDI_REPORTS_DIR", "reports"),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("WEDI_AUTH_ENABLED", true),
			APIKeys: envSliceOr("WEDI_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("WEDI_RATE_RPS", 1.0),
			Burst:             envIntOr("WEDI_RATE_BURST", 3),
		},
		Webhook: WebhookConfig{
			URL:    os.Getenv("WEDI_WEBHOOK_URL"),
			Secret: os.Getenv("WEDI_WEBHOOK_SECRET"),
		},
		Log: LogConfig{
			Level:  envOr("WEDI_LOG_LEVEL", "info"),
			Format: envOr("WEDI_LOG_FORMAT", "json"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
