package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/self-labs/hass-stack/common/envelope"
	"github.com/self-labs/hass-stack/common/logging"
	"github.com/self-labs/hass-stack/common/messaging"
	"github.com/self-labs/hass-stack/execution/internal/broker"
	"github.com/self-labs/hass-stack/execution/internal/models"
	"github.com/self-labs/hass-stack/execution/internal/tracker"
)

type fakeSub struct{ subject string }

func (s *fakeSub) Unsubscribe() error { return nil }
func (s *fakeSub) Subject() string    { return s.subject }
func (s *fakeSub) IsValid() bool      { return true }

type fakeBus struct {
	mu        sync.Mutex
	published map[string][][]byte
}

func newFakeBus() *fakeBus {
	return &fakeBus{published: map[string][][]byte{}}
}

func (b *fakeBus) Publish(_ context.Context, subject string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published[subject] = append(b.published[subject], data)
	return nil
}

func (b *fakeBus) PublishMsg(ctx context.Context, msg *messaging.Message) error {
	return b.Publish(ctx, msg.Subject, msg.Data)
}

func (b *fakeBus) Request(context.Context, string, []byte, time.Duration) (*messaging.Message, error) {
	return nil, errors.New("not implemented")
}

func (b *fakeBus) Subscribe(subject string, _ messaging.MessageHandler) (messaging.Subscription, error) {
	return &fakeSub{subject: subject}, nil
}

func (b *fakeBus) QueueSubscribe(subject, _ string, _ messaging.MessageHandler) (messaging.Subscription, error) {
	return &fakeSub{subject: subject}, nil
}

func (b *fakeBus) Close() error      { return nil }
func (b *fakeBus) Drain() error      { return nil }
func (b *fakeBus) IsConnected() bool { return true }

func (b *fakeBus) messages(subject string) [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.published[subject]
}

type memArchive struct {
	mu    sync.Mutex
	fills []models.Fill
}

func (a *memArchive) ArchiveFill(_ context.Context, fill models.Fill) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fills = append(a.fills, fill)
	return nil
}

func (a *memArchive) RecentFills(_ context.Context, _ string, _ int) ([]models.Fill, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.fills, nil
}

type memDLQ struct {
	mu      sync.Mutex
	entries []models.Order
}

func (d *memDLQ) Write(_ context.Context, order models.Order, _ error, _ string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries = append(d.entries, order)
	return nil
}

func newTestService(bus *fakeBus, prices map[string]float64, staleAfter time.Duration) (*Service, *broker.Paper, *memArchive, *memDLQ) {
	cfg := broker.PaperConfig{
		SlippageBps:     0,
		PartialFillRate: 0,
		Prices:          prices,
	}
	paper := broker.NewPaper(cfg)
	ar := &memArchive{}
	dl := &memDLQ{}
	logger := logging.New(logging.ParseLevel("error"), "text")
	svc := New(paper, tracker.New(staleAfter), ar, dl, bus, logger)
	return svc, paper, ar, dl
}

func barEnvelope(t *testing.T, symbol string, high, low, close, volume float64) []byte {
	t.Helper()
	bar := map[string]interface{}{
		"symbol": symbol,
		"high":   high,
		"low":    low,
		"close":  close,
		"volume": volume,
	}
	env, err := envelope.New(envelope.TypeMarketData, envelope.PriorityP2, "market_data", "broadcast", bar)
	require.NoError(t, err)
	data, err := env.Encode()
	require.NoError(t, err)
	return data
}

func TestExecuteApprovedPublishesFill(t *testing.T) {
	bus := newFakeBus()
	svc, _, ar, _ := newTestService(bus, map[string]float64{"AAPL": 150}, time.Minute)
	ctx := context.Background()

	svc.ExecuteApproved(ctx, approvedOrder{
		SignalID:     "sig-1",
		Symbol:       "AAPL",
		Direction:    "LONG",
		Price:        150,
		PositionSize: 15_000,
	})

	fills := bus.messages(messaging.SubjectOrdersFills)
	require.Len(t, fills, 1)

	env, err := envelope.Decode(fills[0])
	require.NoError(t, err)
	assert.Equal(t, envelope.TypeExecution, env.Type)
	assert.Equal(t, envelope.PriorityP1, env.Priority)

	var fill models.Fill
	require.NoError(t, env.DecodePayload(&fill))
	assert.Equal(t, "AAPL", fill.Symbol)
	assert.Equal(t, "BUY", fill.Direction)
	assert.Equal(t, 100.0, fill.Quantity)
	assert.Equal(t, 150.0, fill.Price)

	require.Len(t, ar.fills, 1)

	stats := svc.Tracker().Stats()
	assert.Equal(t, 1, stats.CompletedOrders)
	assert.Zero(t, stats.ActiveOrders)
}

func TestExecuteApprovedShortSells(t *testing.T) {
	bus := newFakeBus()
	svc, _, _, _ := newTestService(bus, map[string]float64{"TSLA": 200}, time.Minute)

	svc.ExecuteApproved(context.Background(), approvedOrder{
		SignalID:     "sig-2",
		Symbol:       "TSLA",
		Direction:    "SHORT",
		Price:        200,
		PositionSize: 4_000,
	})

	fills := bus.messages(messaging.SubjectOrdersFills)
	require.Len(t, fills, 1)

	env, err := envelope.Decode(fills[0])
	require.NoError(t, err)
	var fill models.Fill
	require.NoError(t, env.DecodePayload(&fill))
	assert.Equal(t, "SELL", fill.Direction)
	assert.Equal(t, 20.0, fill.Quantity)
}

func TestExecuteApprovedRejectionGoesToDLQ(t *testing.T) {
	bus := newFakeBus()
	svc, _, _, dl := newTestService(bus, map[string]float64{}, time.Minute)

	svc.ExecuteApproved(context.Background(), approvedOrder{
		SignalID:     "sig-3",
		Symbol:       "NOPE",
		Direction:    "LONG",
		Price:        100,
		PositionSize: 1_000,
	})

	assert.Empty(t, bus.messages(messaging.SubjectOrdersFills))
	require.Len(t, bus.messages(messaging.SubjectOrdersRejected), 1)
	require.Len(t, dl.entries, 1)
	assert.Equal(t, "NOPE", dl.entries[0].Symbol)
}

func TestHandleBarUpdatesBrokerPrice(t *testing.T) {
	bus := newFakeBus()
	svc, _, _, _ := newTestService(bus, map[string]float64{}, time.Minute)
	ctx := context.Background()

	err := svc.handleBar(ctx, &messaging.Message{
		Subject: messaging.MarketBarSubject("MSFT"),
		Data:    barEnvelope(t, "MSFT", 401, 399, 400, 10_000),
	})
	require.NoError(t, err)

	// The bar's close is now the venue reference price.
	svc.ExecuteApproved(ctx, approvedOrder{
		SignalID:     "sig-4",
		Symbol:       "MSFT",
		Direction:    "LONG",
		Price:        400,
		PositionSize: 8_000,
	})

	require.Len(t, bus.messages(messaging.SubjectOrdersFills), 1)
}

func TestExecuteApprovedSlicesLargeOrders(t *testing.T) {
	bus := newFakeBus()
	svc, _, _, _ := newTestService(bus, map[string]float64{}, time.Minute)
	ctx := context.Background()

	// Thin market: average volume 100 shares per bar.
	for i := 0; i < 20; i++ {
		err := svc.handleBar(ctx, &messaging.Message{
			Subject: messaging.MarketBarSubject("THIN"),
			Data:    barEnvelope(t, "THIN", 100, 100, 100, 100),
		})
		require.NoError(t, err)
	}

	// 60 shares against 100 average volume: impact 0.3, three slices.
	svc.ExecuteApproved(ctx, approvedOrder{
		SignalID:     "sig-5",
		Symbol:       "THIN",
		Direction:    "LONG",
		Price:        100,
		PositionSize: 6_000,
	})

	fills := bus.messages(messaging.SubjectOrdersFills)
	require.Len(t, fills, 3)

	var total float64
	for _, raw := range fills {
		env, err := envelope.Decode(raw)
		require.NoError(t, err)
		var fill models.Fill
		require.NoError(t, env.DecodePayload(&fill))
		total += fill.Quantity
	}
	assert.Equal(t, 60.0, total)
}

func TestSweepStaleCancelsAndResubmits(t *testing.T) {
	bus := newFakeBus()
	svc, paper, _, _ := newTestService(bus, map[string]float64{"AAPL": 150}, time.Millisecond)
	ctx := context.Background()

	// A limit order away from the market rests at the venue.
	resting := models.Order{
		ID:         "ord-rest",
		Symbol:     "AAPL",
		Type:       models.Limit,
		Direction:  "BUY",
		Quantity:   10,
		LimitPrice: 140,
	}
	svc.execute(ctx, resting)
	require.Empty(t, bus.messages(messaging.SubjectOrdersFills))
	require.Equal(t, 1, svc.Tracker().Active())

	time.Sleep(5 * time.Millisecond)
	svc.sweepStale(ctx)

	require.Len(t, bus.messages(messaging.SubjectOrdersCancelled), 1)
	// Resubmitted as a market order and filled.
	require.Len(t, bus.messages(messaging.SubjectOrdersFills), 1)
	assert.Zero(t, svc.Tracker().Active())

	status, err := paper.Status(ctx, "ord-rest")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, status.Status)
}

func TestSweepStaleResubmitsOnlyUnfilledRemainder(t *testing.T) {
	bus := newFakeBus()
	svc, _, _, _ := newTestService(bus, map[string]float64{"AAPL": 150}, time.Millisecond)
	ctx := context.Background()

	resting := models.Order{
		ID:         "ord-part",
		Symbol:     "AAPL",
		Type:       models.Limit,
		Direction:  "BUY",
		Quantity:   100,
		LimitPrice: 140,
	}
	svc.execute(ctx, resting)
	require.Equal(t, 1, svc.Tracker().Active())

	// 60 shares execute at the venue before the order goes stale.
	svc.Tracker().RecordFill(models.Fill{
		OrderID: "ord-part", Symbol: "AAPL", Direction: "BUY", Quantity: 60, Price: 140,
	})

	time.Sleep(5 * time.Millisecond)
	svc.sweepStale(ctx)

	require.Len(t, bus.messages(messaging.SubjectOrdersCancelled), 1)
	fills := bus.messages(messaging.SubjectOrdersFills)
	require.Len(t, fills, 1)

	env, err := envelope.Decode(fills[0])
	require.NoError(t, err)
	var fill models.Fill
	require.NoError(t, env.DecodePayload(&fill))
	assert.Equal(t, 40.0, fill.Quantity)
}

func TestHandleApprovedDropsMalformed(t *testing.T) {
	bus := newFakeBus()
	svc, _, _, _ := newTestService(bus, map[string]float64{}, time.Minute)

	err := svc.handleApproved(context.Background(), &messaging.Message{
		Subject: messaging.SubjectOrdersApproved,
		Data:    []byte("not json"),
	})
	require.NoError(t, err)
	assert.Empty(t, bus.messages(messaging.SubjectOrdersFills))
}
