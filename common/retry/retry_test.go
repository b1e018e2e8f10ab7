package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeverityString(t *testing.T) {
	assert.Equal(t, "E0", SeverityHalt.String())
	assert.Equal(t, "E1", SeverityIsolate.String())
	assert.Equal(t, "E2", SeverityRetry.String())
	assert.Equal(t, "E3", SeverityLog.String())
}

func TestParseSeverity(t *testing.T) {
	assert.Equal(t, SeverityHalt, ParseSeverity("E0"))
	assert.Equal(t, SeverityIsolate, ParseSeverity("E1"))
	assert.Equal(t, SeverityRetry, ParseSeverity("E2"))
	assert.Equal(t, SeverityLog, ParseSeverity("E3"))
	assert.Equal(t, SeverityLog, ParseSeverity("bogus"))
}

func TestWrapAndSeverityOf(t *testing.T) {
	base := errors.New("connection reset")
	err := Wrap(SeverityIsolate, base)
	require.Error(t, err)
	assert.Equal(t, SeverityIsolate, SeverityOf(err))
	assert.True(t, errors.Is(err, base))

	assert.Nil(t, Wrap(SeverityHalt, nil))
	assert.Equal(t, SeverityRetry, SeverityOf(errors.New("bare")))
}

func TestPolicyDelay_Bounded(t *testing.T) {
	p := Policy{Base: 100 * time.Millisecond, Cap: 30 * time.Second}
	for attempt := 0; attempt < 20; attempt++ {
		d := p.Delay(attempt)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, p.Cap)
	}
}

func TestDo_SucceedsAfterRetries(t *testing.T) {
	p := Policy{Base: time.Millisecond, Cap: 2 * time.Millisecond, MaxAttempts: 5}

	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_StopsOnNonRetryable(t *testing.T) {
	p := Policy{Base: time.Millisecond, Cap: 2 * time.Millisecond, MaxAttempts: 5}

	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		return Wrap(SeverityHalt, errors.New("risk engine unavailable"))
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, SeverityHalt, SeverityOf(err))
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	p := Policy{Base: time.Millisecond, Cap: 2 * time.Millisecond, MaxAttempts: 3}

	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		return errors.New("still failing")
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_RespectsContext(t *testing.T) {
	p := Policy{Base: time.Hour, Cap: time.Hour, MaxAttempts: 5}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := p.Do(ctx, func() error {
		return errors.New("transient")
	})
	assert.ErrorIs(t, err, context.Canceled)
}
