package main

import (
	"context"
	"fmt"
	"strings"
)

// TokenSolver is the one operation every acquisition strategy offers.
// On failure the error is a *TokenError (or wraps a FatalError).
type TokenSolver interface {
	GetToken(ctx context.Context) (string, error)
}

var (
	_ TokenSolver = (*HandshakeSolver)(nil)
	_ TokenSolver = (*BrowserSolver)(nil)
	_ TokenSolver = (*ServiceSolver)(nil)
)

type Logger interface {
	Log(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Log(string, ...any) {}

// Strategy selects how a token is acquired.
type Strategy string

const (
	// StrategyHandshake replays anchor + reload over HTTP.
	StrategyHandshake Strategy = "handshake"
	// StrategyBrowser runs grecaptcha.execute in a headless browser.
	StrategyBrowser Strategy = "browser"
	// StrategyService delegates to a solver service.
	StrategyService Strategy = "service"
)

// ParseStrategy maps a CLI name to a Strategy.
func ParseStrategy(name string) (Strategy, error) {
	switch s := Strategy(strings.ToLower(strings.TrimSpace(name))); s {
	case StrategyHandshake, StrategyBrowser, StrategyService:
		return s, nil
	case "http":
		return StrategyHandshake, nil
	}
	return "", fmt.Errorf("unknown strategy %q (want handshake, browser or service)", name)
}

// SolverFactory builds a fresh solver with its own session for one
// acquisition. Sessions are never shared between concurrent acquisitions.
type SolverFactory func(ctx context.Context, logger Logger) (TokenSolver, error)
