package provider

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// ErrNoMove reports a reply that contained no UCI move.
var ErrNoMove = errors.New("no move found in reply")

type ParseError struct {
	Provider string
	Reply    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: no uci move in reply %q", e.Provider, truncate(e.Reply, 120))
}

func (e *ParseError) Unwrap() error { return ErrNoMove }

// FailureKind classifies why a provider call did not yield a reply.
type FailureKind string

const (
	FailureNetwork     FailureKind = "network"
	FailureAuth        FailureKind = "auth"
	FailureRateLimit   FailureKind = "rate_limit"
	FailureTimeout     FailureKind = "timeout"
	FailureServer      FailureKind = "server"
	FailureBadResponse FailureKind = "bad_response"
	FailureRequest     FailureKind = "request"
	FailureCanceled    FailureKind = "canceled"
)

type ProviderError struct {
	Provider   string
	Kind       FailureKind
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Provider, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Retryable reports whether another attempt of the same request may succeed.
func (e *ProviderError) Retryable() bool {
	switch e.Kind {
	case FailureNetwork, FailureRateLimit, FailureServer:
		return true
	default:
		return false
	}
}

func kindForStatus(status int) FailureKind {
	switch {
	case status == 401 || status == 403:
		return FailureAuth
	case status == 408:
		return FailureTimeout
	case status == 429:
		return FailureRateLimit
	case status >= 500:
		return FailureServer
	default:
		return FailureRequest
	}
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
