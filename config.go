package main

import (
	"os"
	"strconv"
	"time"
)

// Build-time variables - inject via ldflags
// Example: go build -ldflags "-X main.capSolverAPIKey=YOUR_KEY -X main.captchaAPIKey=YOUR_KEY"
var (
	capSolverAPIKey  string // -X main.capSolverAPIKey=...
	capMonsterAPIKey string // -X main.capMonsterAPIKey=...
	captchaAPIKey    string // -X main.captchaAPIKey=...
)

// GetCapSolverAPIKey returns the CapSolver API key (build-time or env fallback)
func GetCapSolverAPIKey() string {
	if capSolverAPIKey != "" {
		return capSolverAPIKey
	}
	return os.Getenv("CAPSOLVER_KEY")
}

// GetCapMonsterAPIKey returns the CapMonster Cloud API key (build-time or env fallback)
func GetCapMonsterAPIKey() string {
	if capMonsterAPIKey != "" {
		return capMonsterAPIKey
	}
	return os.Getenv("CAPMONSTER_KEY")
}

// GetCaptchaAPIKey returns the 2Captcha API key (build-time or env fallback)
func GetCaptchaAPIKey() string {
	if captchaAPIKey != "" {
		return captchaAPIKey
	}
	return os.Getenv("2CAP_KEY")
}

// Config is everything the binary reads from the environment.
type Config struct {
	SiteKey        string
	PageURL        string
	Action         string
	ReadyElementID string
	BrowserFamily  string
	BrowserPath    string
	WaitTimeout    time.Duration
	KeyedReload    bool
	Hardened       bool
	ProxyFile      string
	MinScore       float64
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// LoadConfig reads Config from the environment. Call godotenv.Load first
// for .env support.
func LoadConfig() Config {
	cfg := Config{
		SiteKey:        os.Getenv("RECAPTCHA_SITE_KEY"),
		PageURL:        os.Getenv("RECAPTCHA_PAGE_URL"),
		Action:         envOr("RECAPTCHA_ACTION", defaultAction),
		ReadyElementID: os.Getenv("RECAPTCHA_READY_ELEMENT"),
		BrowserFamily:  envOr("BROWSER_FAMILY", "chrome"),
		BrowserPath:    os.Getenv("BROWSER_PATH"),
		WaitTimeout:    DefaultWaitTimeout,
		ProxyFile:      envOr("PROXY_FILE", "proxies.txt"),
		MinScore:       0.3,
	}

	if secs, err := strconv.Atoi(os.Getenv("BROWSER_WAIT_SECONDS")); err == nil && secs > 0 {
		cfg.WaitTimeout = time.Duration(secs) * time.Second
	}
	if score, err := strconv.ParseFloat(os.Getenv("RECAPTCHA_MIN_SCORE"), 64); err == nil && score > 0 {
		cfg.MinScore = score
	}
	cfg.KeyedReload, _ = strconv.ParseBool(os.Getenv("RECAPTCHA_KEYED_RELOAD"))
	cfg.Hardened, _ = strconv.ParseBool(os.Getenv("TLS_HARDENED"))
	return cfg
}
