// Package ratelimit gates write endpoints with a sliding-window counter
// kept in an external store.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// GlobalIdentifier is the shared key used when no identifier is given
const GlobalIdentifier = "global"

// FallbackResetAfter is how far ahead Reset is set when the backend fails
const FallbackResetAfter = 5 * time.Minute

// Decision is the admission verdict for one call
type Decision struct {
	Allowed   bool  `json:"success"`
	Limit     int   `json:"limit"`
	Remaining int   `json:"remaining"`
	Reset     int64 `json:"reset"` // epoch milliseconds
}

// Backend is the external sliding-window counter.
// Hit records one event for key and reports whether it fits in the window.
type Backend interface {
	Hit(ctx context.Context, key string, limit int, window time.Duration) (Decision, error)
}

// Policy decides what happens when the backend is unreachable
type Policy int

const (
	FailOpen Policy = iota
	FailClosed
)

func (p Policy) String() string {
	switch p {
	case FailOpen:
		return "fail_open"
	case FailClosed:
		return "fail_closed"
	default:
		return "unknown"
	}
}

// ParsePolicy parses "fail_open" or "fail_closed"
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(s) {
	case "", "fail_open":
		return FailOpen, nil
	case "fail_closed":
		return FailClosed, nil
	default:
		return FailOpen, fmt.Errorf("unknown rate limit policy %q", s)
	}
}

// Rule is a limit over a window string such as "15m"
type Rule struct {
	Name   string
	Limit  int
	Window string
}

// Limiter translates a Rule into backend calls and interprets the verdict.
// It holds no per-call state and is safe for concurrent use.
type Limiter struct {
	backend Backend
	name    string
	limit   int
	window  time.Duration
	policy  Policy
	logger  logrus.FieldLogger
	now     func() time.Time
}

// New creates a Limiter for rule
func New(backend Backend, rule Rule, policy Policy, logger logrus.FieldLogger) *Limiter {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	limit := rule.Limit
	if limit <= 0 {
		limit = 1
	}
	name := rule.Name
	if name == "" {
		name = "default"
	}
	return &Limiter{
		backend: backend,
		name:    name,
		limit:   limit,
		window:  WindowDuration(rule.Window),
		policy:  policy,
		logger:  logger,
		now:     time.Now,
	}
}

// Limit returns the window limit
func (l *Limiter) Limit() int {
	return l.limit
}

// Window returns the parsed window length
func (l *Limiter) Window() time.Duration {
	return l.window
}

// Check records one hit for identifier and returns the decision.
// An empty identifier shares GlobalIdentifier. Backend errors never propagate;
// they are logged and resolved by the configured Policy.
func (l *Limiter) Check(ctx context.Context, identifier string) Decision {
	if identifier == "" {
		identifier = GlobalIdentifier
	}
	now := l.now()

	d, err := l.backend.Hit(ctx, l.key(identifier), l.limit, l.window)
	if err != nil {
		l.logger.WithFields(logrus.Fields{
			"rule":       l.name,
			"identifier": identifier,
			"policy":     l.policy.String(),
		}).WithError(err).Error("rate limit backend failed")
		return l.fallback(now)
	}

	d.Limit = l.limit
	if d.Remaining > d.Limit {
		d.Remaining = d.Limit
	}
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	if ms := now.UnixMilli(); d.Reset < ms {
		d.Reset = ms
	}
	return d
}

func (l *Limiter) fallback(now time.Time) Decision {
	reset := now.Add(FallbackResetAfter).UnixMilli()
	if l.policy == FailClosed {
		return Decision{Allowed: false, Limit: l.limit, Remaining: 0, Reset: reset}
	}
	return Decision{Allowed: true, Limit: l.limit, Remaining: l.limit, Reset: reset}
}

func (l *Limiter) key(identifier string) string {
	return "ratelimit:" + l.name + ":" + strconv.Itoa(int(l.window/time.Second)) + ":" + identifier
}
