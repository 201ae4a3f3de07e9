package main

import (
	"context"
	"testing"
	"time"
)

func TestAPIKeysFromEnv(t *testing.T) {
	t.Setenv("CAPSOLVER_KEY", "solver")
	t.Setenv("CAPMONSTER_KEY", "monster")
	t.Setenv("2CAP_KEY", "two")
	if GetCapSolverAPIKey() != "solver" || GetCapMonsterAPIKey() != "monster" || GetCaptchaAPIKey() != "two" {
		t.Errorf("keys = %q %q %q", GetCapSolverAPIKey(), GetCapMonsterAPIKey(), GetCaptchaAPIKey())
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{
		"RECAPTCHA_SITE_KEY", "RECAPTCHA_PAGE_URL", "RECAPTCHA_ACTION", "RECAPTCHA_READY_ELEMENT",
		"BROWSER_FAMILY", "BROWSER_PATH", "BROWSER_WAIT_SECONDS", "RECAPTCHA_MIN_SCORE",
		"RECAPTCHA_KEYED_RELOAD", "TLS_HARDENED", "PROXY_FILE",
	} {
		t.Setenv(key, "")
	}

	cfg := LoadConfig()
	if cfg.Action != "submit" || cfg.BrowserFamily != "chrome" || cfg.ProxyFile != "proxies.txt" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.WaitTimeout != DefaultWaitTimeout {
		t.Errorf("WaitTimeout = %s", cfg.WaitTimeout)
	}
	if cfg.MinScore != 0.3 {
		t.Errorf("MinScore = %v", cfg.MinScore)
	}
	if cfg.KeyedReload || cfg.Hardened {
		t.Error("flags should default to off")
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("RECAPTCHA_SITE_KEY", "6LcSITEKEY")
	t.Setenv("RECAPTCHA_ACTION", "login")
	t.Setenv("RECAPTCHA_READY_ELEMENT", "login-button")
	t.Setenv("BROWSER_FAMILY", "chromium")
	t.Setenv("BROWSER_WAIT_SECONDS", "30")
	t.Setenv("RECAPTCHA_MIN_SCORE", "0.9")
	t.Setenv("RECAPTCHA_KEYED_RELOAD", "true")
	t.Setenv("TLS_HARDENED", "1")

	cfg := LoadConfig()
	if cfg.SiteKey != "6LcSITEKEY" || cfg.Action != "login" || cfg.ReadyElementID != "login-button" {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.BrowserFamily != "chromium" {
		t.Errorf("BrowserFamily = %q", cfg.BrowserFamily)
	}
	if cfg.WaitTimeout != 30*time.Second {
		t.Errorf("WaitTimeout = %s", cfg.WaitTimeout)
	}
	if cfg.MinScore != 0.9 {
		t.Errorf("MinScore = %v", cfg.MinScore)
	}
	if !cfg.KeyedReload || !cfg.Hardened {
		t.Error("flags not read")
	}
}

func TestParseStrategy(t *testing.T) {
	tests := map[string]Strategy{
		"handshake": StrategyHandshake,
		"HTTP":      StrategyHandshake,
		" browser ": StrategyBrowser,
		"service":   StrategyService,
	}
	for in, want := range tests {
		if got, err := ParseStrategy(in); err != nil || got != want {
			t.Errorf("ParseStrategy(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseStrategy("selenium"); err == nil {
		t.Error("expected error for unknown strategy")
	}
}

func TestNewSolverFactory(t *testing.T) {
	ctx := context.Background()
	proxies := NewProxyPool(nil)

	t.Run("handshake", func(t *testing.T) {
		factory, err := newSolverFactory(StrategyHandshake, testAnchorURL, Config{Hardened: true}, proxies)
		if err != nil {
			t.Fatalf("newSolverFactory: %v", err)
		}
		solver, err := factory(ctx, nopLogger{})
		if err != nil {
			t.Fatalf("factory: %v", err)
		}
		hs, ok := solver.(*HandshakeSolver)
		if !ok {
			t.Fatalf("solver is %T", solver)
		}
		if hs.Challenge().SiteKey() != "6LcSITEKEY" {
			t.Errorf("site key = %q", hs.Challenge().SiteKey())
		}
		if hs.opts.Profile != HardenedProfile {
			t.Error("hardened config should select the hardened profile")
		}
	})

	t.Run("browser rejects family", func(t *testing.T) {
		cfg := Config{BrowserFamily: "firefox", SiteKey: "k", ReadyElementID: "id"}
		_, err := newSolverFactory(StrategyBrowser, "https://example.com", cfg, proxies)
		if !IsFatalError(err) {
			t.Errorf("want fatal unsupported family, got %v", err)
		}
	})

	t.Run("browser requires site key", func(t *testing.T) {
		cfg := Config{BrowserFamily: "chrome", ReadyElementID: "id"}
		if _, err := newSolverFactory(StrategyBrowser, "https://example.com", cfg, proxies); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("service without keys", func(t *testing.T) {
		t.Setenv("CAPSOLVER_KEY", "")
		t.Setenv("CAPMONSTER_KEY", "")
		t.Setenv("2CAP_KEY", "")
		_, err := newSolverFactory(StrategyService, testAnchorURL, Config{}, proxies)
		if !IsFatalError(err) {
			t.Errorf("want fatal, got %v", err)
		}
	})

	t.Run("service reads site key from anchor", func(t *testing.T) {
		t.Setenv("CAPSOLVER_KEY", "")
		t.Setenv("CAPMONSTER_KEY", "")
		t.Setenv("2CAP_KEY", "two-key")
		factory, err := newSolverFactory(StrategyService, testAnchorURL, Config{Action: "submit"}, proxies)
		if err != nil {
			t.Fatalf("newSolverFactory: %v", err)
		}
		solver, err := factory(ctx, nopLogger{})
		if err != nil {
			t.Fatalf("factory: %v", err)
		}
		ss := solver.(*ServiceSolver)
		if ss.opts.Provider.Name != TwoCaptchaProvider.Name || ss.opts.APIKey != "two-key" {
			t.Errorf("provider = %s, key = %s", ss.opts.Provider.Name, ss.opts.APIKey)
		}
		if ss.opts.SiteKey != "6LcSITEKEY" || ss.opts.PageURL != testAnchorURL {
			t.Errorf("site key = %q, page = %q", ss.opts.SiteKey, ss.opts.PageURL)
		}
		if ss.opts.Chain == nil {
			t.Error("service solver not attached to the provider chain")
		}
	})

	t.Run("service provider order", func(t *testing.T) {
		t.Setenv("CAPSOLVER_KEY", "")
		t.Setenv("CAPMONSTER_KEY", "monster-key")
		t.Setenv("2CAP_KEY", "two-key")
		factory, err := newSolverFactory(StrategyService, testAnchorURL, Config{}, proxies)
		if err != nil {
			t.Fatalf("newSolverFactory: %v", err)
		}
		solver, err := factory(ctx, nopLogger{})
		if err != nil {
			t.Fatalf("factory: %v", err)
		}
		ss := solver.(*ServiceSolver)
		if ss.opts.Provider.Name != CapMonsterProvider.Name || ss.opts.APIKey != "monster-key" {
			t.Errorf("provider = %s, key = %s; want capmonster first", ss.opts.Provider.Name, ss.opts.APIKey)
		}

		ss.opts.Chain.Disable(CapMonsterProvider.Name)
		next, err := factory(ctx, nopLogger{})
		if err != nil {
			t.Fatalf("factory after disable: %v", err)
		}
		if name := next.(*ServiceSolver).opts.Provider.Name; name != TwoCaptchaProvider.Name {
			t.Errorf("fallback provider = %s, want 2captcha", name)
		}

		ss.opts.Chain.Disable(TwoCaptchaProvider.Name)
		if _, err := factory(ctx, nopLogger{}); !IsFatalError(err) {
			t.Errorf("exhausted chain should be fatal, got %v", err)
		}
	})
}
