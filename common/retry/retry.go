// Package retry implements the error severity scale shared by every
// agent and the backoff policy used when a severity calls for retry.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// Severity classifies how an agent must react to a failure.
type Severity int

const (
	// SeverityHalt stops the whole system. Reserved for failures that
	// make further trading unsafe (risk engine down, broker rejecting
	// everything).
	SeverityHalt Severity = iota
	// SeverityIsolate takes the failing agent out of rotation while the
	// rest of the system keeps running.
	SeverityIsolate
	// SeverityRetry retries the operation with backoff.
	SeverityRetry
	// SeverityLog records the failure and moves on.
	SeverityLog
)

// String returns the wire name for the severity (E0 through E3).
func (s Severity) String() string {
	switch s {
	case SeverityHalt:
		return "E0"
	case SeverityIsolate:
		return "E1"
	case SeverityRetry:
		return "E2"
	case SeverityLog:
		return "E3"
	default:
		return "E3"
	}
}

// Action returns the operator-facing action for the severity.
func (s Severity) Action() string {
	switch s {
	case SeverityHalt:
		return "halt"
	case SeverityIsolate:
		return "isolate"
	case SeverityRetry:
		return "retry"
	default:
		return "log"
	}
}

// ParseSeverity converts a wire name (E0..E3) to a Severity.
// Unknown values map to SeverityLog.
func ParseSeverity(s string) Severity {
	switch s {
	case "E0":
		return SeverityHalt
	case "E1":
		return SeverityIsolate
	case "E2":
		return SeverityRetry
	default:
		return SeverityLog
	}
}

// Error wraps an error with a severity so handlers up the stack can
// pick the right reaction without string matching.
type Error struct {
	Severity Severity
	Err      error
}

func (e *Error) Error() string {
	return e.Severity.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap attaches a severity to err. Returns nil if err is nil.
func Wrap(severity Severity, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Severity: severity, Err: err}
}

// SeverityOf extracts the severity from err. Errors without an
// attached severity default to SeverityRetry, which is the safe
// reaction for transient infrastructure failures.
func SeverityOf(err error) Severity {
	var re *Error
	if errors.As(err, &re) {
		return re.Severity
	}
	return SeverityRetry
}

// Policy controls backoff between attempts. The delay for attempt n
// is a random duration in [0, min(Base*2^n, Cap)] (full jitter).
type Policy struct {
	Base        time.Duration
	Cap         time.Duration
	MaxAttempts int
}

// DefaultPolicy is the backoff shared by bus consumers and outbound
// HTTP calls: 100ms base doubling up to 30s, five attempts.
var DefaultPolicy = Policy{
	Base:        100 * time.Millisecond,
	Cap:         30 * time.Second,
	MaxAttempts: 5,
}

// Delay returns the backoff delay for the given zero-based attempt.
func (p Policy) Delay(attempt int) time.Duration {
	d := p.Base << uint(attempt)
	if d <= 0 || d > p.Cap {
		d = p.Cap
	}
	return time.Duration(rand.Int63n(int64(d) + 1))
}

// Do runs fn up to MaxAttempts times, sleeping per the policy between
// attempts. It stops early when fn succeeds, when ctx is done, or
// when fn returns an error whose severity is not SeverityRetry.
func (p Policy) Do(ctx context.Context, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if SeverityOf(err) != SeverityRetry {
			return err
		}
		if attempt == attempts-1 {
			break
		}

		timer := time.NewTimer(p.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}
