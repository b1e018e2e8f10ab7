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
	"github.com/self-labs/hass-stack/options/internal/models"
)

type capturePublisher struct {
	mu   sync.Mutex
	msgs map[string][][]byte
}

func newCapturePublisher() *capturePublisher {
	return &capturePublisher{msgs: make(map[string][][]byte)}
}

func (p *capturePublisher) Publish(ctx context.Context, subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs[subject] = append(p.msgs[subject], data)
	return nil
}

func (p *capturePublisher) PublishMsg(ctx context.Context, msg *messaging.Message) error {
	return p.Publish(ctx, msg.Subject, msg.Data)
}

func (p *capturePublisher) Request(ctx context.Context, subject string, data []byte, timeout time.Duration) (*messaging.Message, error) {
	return nil, nil
}

func (p *capturePublisher) Close() error { return nil }

func (p *capturePublisher) published(subject string) [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.msgs[subject]
}

func TestProcessChain_EnrichesAndPublishesSurface(t *testing.T) {
	pub := newCapturePublisher()
	svc := New(pub, 0.02, logging.New(slog.LevelError, "text"))

	quotes := []models.Quote{{
		Symbol:     "AAPL",
		Underlying: 190,
		Type:       models.Call,
		Strike:     190,
		Expiration: time.Now().UTC().Add(90 * 24 * time.Hour),
		Bid:        7.8,
		Ask:        8.2,
		Volume:     50,
		Timestamp:  time.Now().UTC(),
	}}

	_, err := svc.ProcessChain(context.Background(), quotes)
	require.NoError(t, err)

	surfaces := pub.published(messaging.SubjectOptionsSurface)
	require.Len(t, surfaces, 1)

	env, err := envelope.Decode(surfaces[0])
	require.NoError(t, err)
	assert.Equal(t, envelope.TypeMarketData, env.Type)
	assert.Equal(t, envelope.PriorityP3, env.Priority)

	var surface Surface
	require.NoError(t, env.DecodePayload(&surface))
	assert.Equal(t, "AAPL", surface.Symbol)
	assert.Equal(t, 1, surface.Contracts)
	// IV solving and delta enrichment ran: an ATM call carries
	// positive delta-weighted exposure.
	assert.Greater(t, surface.NetDelta, 0.0)
}

func TestProcessChain_PublishesFlowSignals(t *testing.T) {
	pub := newCapturePublisher()
	svc := New(pub, 0.02, logging.New(slog.LevelError, "text"))
	ctx := context.Background()

	exp := time.Now().UTC().Add(30 * 24 * time.Hour)
	base := models.Quote{
		Symbol:     "TSLA",
		Underlying: 250,
		Type:       models.Call,
		Strike:     250,
		Expiration: exp,
		Bid:        9.9,
		Ask:        10.1,
		Delta:      0.5,
		Gamma:      0.02,
		Timestamp:  time.Now().UTC(),
	}

	// Stable baseline, then a large spike.
	for i := 0; i < 10; i++ {
		q := base
		q.Volume = int64(100 + i%3)
		_, err := svc.ProcessChain(ctx, []models.Quote{q})
		require.NoError(t, err)
	}
	spike := base
	spike.Volume = 5000
	signals, err := svc.ProcessChain(ctx, []models.Quote{spike})
	require.NoError(t, err)
	require.NotEmpty(t, signals)

	published := pub.published(messaging.SubjectOptionsFlow)
	require.NotEmpty(t, published)

	env, err := envelope.Decode(published[len(published)-1])
	require.NoError(t, err)
	assert.Equal(t, envelope.TypeSignal, env.Type)
	assert.Equal(t, envelope.PriorityP1, env.Priority)
	assert.Equal(t, "options_chain", env.Source)
}

func TestProcessChain_EmptySnapshot(t *testing.T) {
	pub := newCapturePublisher()
	svc := New(pub, 0.02, logging.New(slog.LevelError, "text"))

	signals, err := svc.ProcessChain(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, signals)
	assert.Empty(t, pub.published(messaging.SubjectOptionsSurface))
}
