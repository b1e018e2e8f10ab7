package service

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/self-labs/hass-stack/common/envelope"
	"github.com/self-labs/hass-stack/common/logging"
	"github.com/self-labs/hass-stack/common/messaging"
	"github.com/self-labs/hass-stack/marketdata/internal/history"
	"github.com/self-labs/hass-stack/marketdata/internal/models"
)

// capturePublisher records published messages for assertions.
type capturePublisher struct {
	mu   sync.Mutex
	msgs []capturedMsg
}

type capturedMsg struct {
	subject string
	data    []byte
}

func (p *capturePublisher) Publish(ctx context.Context, subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, capturedMsg{subject: subject, data: data})
	return nil
}

func (p *capturePublisher) PublishMsg(ctx context.Context, msg *messaging.Message) error {
	return p.Publish(ctx, msg.Subject, msg.Data)
}

func (p *capturePublisher) Request(ctx context.Context, subject string, data []byte, timeout time.Duration) (*messaging.Message, error) {
	return nil, nil
}

func (p *capturePublisher) Close() error { return nil }

func (p *capturePublisher) bySubjectPrefix(prefix string) []capturedMsg {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []capturedMsg
	for _, m := range p.msgs {
		if len(m.subject) >= len(prefix) && m.subject[:len(prefix)] == prefix {
			out = append(out, m)
		}
	}
	return out
}

func newTestService(pub messaging.Publisher) *Service {
	return New(history.NewStore(100), pub, time.Minute, logging.New(slog.LevelError, "text"))
}

func TestIngestTick_RejectsInvalid(t *testing.T) {
	svc := newTestService(&capturePublisher{})

	err := svc.IngestTick(context.Background(), models.Tick{Symbol: "", Price: 100})
	assert.ErrorIs(t, err, ErrInvalidTick)

	err = svc.IngestTick(context.Background(), models.Tick{Symbol: "AAPL", Price: -1})
	assert.ErrorIs(t, err, ErrInvalidTick)
}

func TestIngestTick_AggregatesWithinWindow(t *testing.T) {
	pub := &capturePublisher{}
	svc := newTestService(pub)
	ctx := context.Background()

	base := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	ticks := []models.Tick{
		{Symbol: "AAPL", Price: 100, Size: 10, Timestamp: base},
		{Symbol: "AAPL", Price: 103, Size: 5, Timestamp: base.Add(10 * time.Second)},
		{Symbol: "AAPL", Price: 99, Size: 7, Timestamp: base.Add(30 * time.Second)},
	}
	for _, tick := range ticks {
		require.NoError(t, svc.IngestTick(ctx, tick))
	}

	// Nothing published yet; the bar is still open.
	assert.Empty(t, pub.bySubjectPrefix(messaging.SubjectMarketBars))

	// A tick in the next window completes the bar.
	require.NoError(t, svc.IngestTick(ctx, models.Tick{
		Symbol: "AAPL", Price: 101, Size: 3, Timestamp: base.Add(time.Minute),
	}))

	published := pub.bySubjectPrefix(messaging.SubjectMarketBars)
	require.Len(t, published, 1)
	assert.Equal(t, messaging.MarketBarSubject("AAPL"), published[0].subject)

	env, err := envelope.Decode(published[0].data)
	require.NoError(t, err)
	assert.Equal(t, envelope.TypeMarketData, env.Type)
	assert.Equal(t, envelope.PriorityP2, env.Priority)
	assert.Equal(t, "market_data", env.Source)

	var bar models.Bar
	require.NoError(t, env.DecodePayload(&bar))
	assert.Equal(t, 100.0, bar.Open)
	assert.Equal(t, 103.0, bar.High)
	assert.Equal(t, 99.0, bar.Low)
	assert.Equal(t, 99.0, bar.Close)
	assert.Equal(t, int64(22), bar.Volume)
}

func TestFlush_PublishesPendingBars(t *testing.T) {
	pub := &capturePublisher{}
	svc := newTestService(pub)
	ctx := context.Background()

	base := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	require.NoError(t, svc.IngestTick(ctx, models.Tick{Symbol: "SPY", Price: 500, Size: 1, Timestamp: base}))
	require.NoError(t, svc.IngestTick(ctx, models.Tick{Symbol: "QQQ", Price: 400, Size: 1, Timestamp: base}))

	require.NoError(t, svc.Flush(ctx))

	assert.Len(t, pub.bySubjectPrefix(messaging.SubjectMarketBars), 2)
	assert.Len(t, svc.Bars("SPY"), 1)
	assert.Len(t, svc.Bars("QQQ"), 1)
}

func TestCompleteBar_EmitsSignalsOnThreshold(t *testing.T) {
	pub := &capturePublisher{}
	svc := newTestService(pub)
	ctx := context.Background()

	// Steadily declining closes drive RSI below 30 once enough bars exist.
	base := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 25; i++ {
		tick := models.Tick{
			Symbol:    "TSLA",
			Price:     300 - float64(i)*2,
			Size:      100,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, svc.IngestTick(ctx, tick))
	}
	require.NoError(t, svc.Flush(ctx))

	signalMsgs := pub.bySubjectPrefix(messaging.SubjectMarketSignals)
	require.NotEmpty(t, signalMsgs)

	env, err := envelope.Decode(signalMsgs[len(signalMsgs)-1].data)
	require.NoError(t, err)
	assert.Equal(t, envelope.TypeSignal, env.Type)
	assert.Equal(t, envelope.PriorityP1, env.Priority)

	var sig models.Signal
	require.NoError(t, env.DecodePayload(&sig))
	assert.Equal(t, "TSLA", sig.Symbol)
	assert.Equal(t, models.DirectionBuy, sig.Direction)
}
