package messaging

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/self-labs/hass-stack/common/envelope"
)

func TestMarketBarSubject(t *testing.T) {
	assert.Equal(t, "market.bars.completed.AAPL", MarketBarSubject("AAPL"))
}

func TestAgentHeartbeatSubject(t *testing.T) {
	assert.Equal(t, "agents.heartbeat.status.market_data", AgentHeartbeatSubject("market_data"))
}

type capturePublisher struct {
	subject string
	data    []byte
}

func (p *capturePublisher) Publish(_ context.Context, subject string, data []byte) error {
	p.subject = subject
	p.data = data
	return nil
}

func (p *capturePublisher) PublishMsg(ctx context.Context, msg *Message) error {
	return p.Publish(ctx, msg.Subject, msg.Data)
}

func (p *capturePublisher) Request(context.Context, string, []byte, time.Duration) (*Message, error) {
	return nil, nil
}

func (p *capturePublisher) Close() error { return nil }

func TestPublishEnvelope(t *testing.T) {
	env, err := envelope.New(envelope.TypeSystem, envelope.PriorityP2, "market_data", "coordinator",
		map[string]string{"k": "v"})
	require.NoError(t, err)

	pub := &capturePublisher{}
	require.NoError(t, PublishEnvelope(context.Background(), pub, SubjectSystemAlerts, env))

	assert.Equal(t, SubjectSystemAlerts, pub.subject)
	decoded, err := envelope.Decode(pub.data)
	require.NoError(t, err)
	assert.Equal(t, env.ID, decoded.ID)
}
