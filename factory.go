package main

import (
	"context"
	"errors"
	"fmt"
)

// newSolverFactory validates configuration once and returns a factory that
// builds a fresh solver, with its own session, per acquisition. Problems
// that would hit every acquisition are reported here instead.
func newSolverFactory(strategy Strategy, target string, cfg Config, proxies *ProxyPool) (SolverFactory, error) {
	switch strategy {
	case StrategyHandshake:
		return handshakeFactory(target, cfg, proxies), nil
	case StrategyBrowser:
		return browserFactory(target, cfg)
	case StrategyService:
		return serviceFactory(target, cfg)
	}
	return nil, fmt.Errorf("unknown strategy %q", strategy)
}

func handshakeFactory(anchorURL string, cfg Config, proxies *ProxyPool) SolverFactory {
	return func(ctx context.Context, logger Logger) (TokenSolver, error) {
		proxyURL, display := proxies.Random()
		logger.Log("Using proxy: %s", display)

		newClient, profile := NewClient, DefaultProfile
		if cfg.Hardened {
			newClient, profile = NewHardenedClient, HardenedProfile
		}
		client, err := newClient(nil, proxyURL)
		if err != nil {
			return nil, err
		}

		return NewHandshakeSolver(client, anchorURL, HandshakeOptions{
			KeyedReload: cfg.KeyedReload,
			Profile:     profile,
			Logger:      logger,
		}), nil
	}
}

func browserFactory(pageURL string, cfg Config) (SolverFactory, error) {
	if err := checkBrowserFamily(cfg.BrowserFamily); err != nil {
		return nil, err
	}
	if cfg.SiteKey == "" {
		return nil, errors.New("RECAPTCHA_SITE_KEY is required for the browser strategy")
	}
	if cfg.ReadyElementID == "" {
		return nil, errors.New("RECAPTCHA_READY_ELEMENT is required for the browser strategy")
	}

	return func(ctx context.Context, logger Logger) (TokenSolver, error) {
		session, err := NewBrowserSession(ctx, cfg.BrowserFamily, BrowserLaunchOptions{
			ExecPath:  cfg.BrowserPath,
			UserAgent: DefaultProfile.UserAgent,
		})
		if err != nil {
			return nil, err
		}

		solver, err := NewBrowserSolver(session, BrowserOptions{
			PageURL:        pageURL,
			SiteKey:        cfg.SiteKey,
			Action:         cfg.Action,
			ReadyElementID: cfg.ReadyElementID,
			WaitTimeout:    cfg.WaitTimeout,
			Logger:         logger,
		})
		if err != nil {
			session.Quit()
			return nil, err
		}
		return solver, nil
	}, nil
}

// serviceFactory uses CapSolver, then CapMonster, then 2Captcha, moving down
// the chain when a provider reports a fatal account error. target may be an
// anchor URL, in which case the site key is read from it.
func serviceFactory(target string, cfg Config) (SolverFactory, error) {
	chain, err := NewServiceChain(
		ServiceAccount{Provider: CapSolverProvider, APIKey: GetCapSolverAPIKey()},
		ServiceAccount{Provider: CapMonsterProvider, APIKey: GetCapMonsterAPIKey()},
		ServiceAccount{Provider: TwoCaptchaProvider, APIKey: GetCaptchaAPIKey()},
	)
	if err != nil {
		return nil, err
	}

	siteKey := cfg.SiteKey
	if siteKey == "" {
		siteKey = ParseChallengeContext(target).SiteKey()
	}
	if siteKey == "" {
		return nil, errors.New("no site key: set RECAPTCHA_SITE_KEY or pass an anchor URL")
	}
	pageURL := cfg.PageURL
	if pageURL == "" {
		pageURL = target
	}

	return func(ctx context.Context, logger Logger) (TokenSolver, error) {
		account, ok := chain.Active()
		if !ok {
			return nil, NewFatalError(errors.New("every captcha provider has been disabled"))
		}
		return NewServiceSolver(ServiceOptions{
			Provider:  account.Provider,
			APIKey:    account.APIKey,
			PageURL:   pageURL,
			SiteKey:   siteKey,
			Action:    cfg.Action,
			MinScore:  cfg.MinScore,
			UserAgent: DefaultProfile.UserAgent,
			Chain:     chain,
			Logger:    logger,
		})
	}, nil
}
