package main

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrorKind classifies why a token acquisition failed.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// TransportFault is a network, DNS or TLS failure during a handshake request.
	TransportFault
	// ExtractionFailure means an expected marker was absent from a response body.
	ExtractionFailure
	// AutomationTimeout means the ready element never appeared within the wait bound.
	AutomationTimeout
	// AutomationScriptFault means the in-page issuance call raised or returned nothing.
	AutomationScriptFault
	// UnsupportedBrowserFamily is a construction-time rejection.
	UnsupportedBrowserFamily
	// ServiceFault is a solver-service error (task creation, polling, missing solution).
	ServiceFault
)

func (k ErrorKind) String() string {
	switch k {
	case TransportFault:
		return "transport fault"
	case ExtractionFailure:
		return "extraction failure"
	case AutomationTimeout:
		return "automation timeout"
	case AutomationScriptFault:
		return "automation script fault"
	case UnsupportedBrowserFamily:
		return "unsupported browser family"
	case ServiceFault:
		return "service fault"
	default:
		return "unknown"
	}
}

// TokenError is the failure half of every GetToken call.
type TokenError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *TokenError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *TokenError) Unwrap() error {
	return e.Err
}

func newTokenError(kind ErrorKind, op string, err error) error {
	return &TokenError{Kind: kind, Op: op, Err: err}
}

// KindOf returns the ErrorKind carried by err, or KindUnknown.
func KindOf(err error) ErrorKind {
	var te *TokenError
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// =============================================================================
// Fatal Errors
// =============================================================================

// FatalError represents an error that should stop every worker immediately.
// These are configuration or billing problems where another attempt won't help.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return e.Err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// NewFatalError wraps an error as fatal.
func NewFatalError(err error) error {
	return &FatalError{Err: err}
}

// IsFatalError checks if the error is fatal. Unsupported browser families
// count as fatal even when not wrapped, since every worker would hit them.
func IsFatalError(err error) bool {
	if err == nil {
		return false
	}
	var fe *FatalError
	if errors.As(err, &fe) {
		return true
	}
	return IsKind(err, UnsupportedBrowserFamily)
}

// =============================================================================
// Retryable Errors
// =============================================================================

// retryableErrorPatterns contains error message substrings that indicate retryable errors.
var retryableErrorPatterns = []string{
	"connection refused",
	"connection reset",
	"no such host",
	"i/o timeout",
	"context deadline exceeded",
	"TLS handshake timeout",
	"EOF",
	"malformed HTTP response",
	"transport connection broken",
	"use of closed network connection",
}

// IsRetryableError reports whether a caller may reasonably start a fresh
// acquisition after err. The engine itself never retries.
func IsRetryableError(err error) bool {
	if err == nil || IsFatalError(err) {
		return false
	}

	switch KindOf(err) {
	case TransportFault, AutomationTimeout:
		return true
	}

	if isNetworkTimeout(err) {
		return true
	}

	return containsRetryablePattern(err.Error())
}

func isNetworkTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

func containsRetryablePattern(errStr string) bool {
	for _, pattern := range retryableErrorPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}
