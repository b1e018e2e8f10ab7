// Package stats keeps rolling per-agent traffic observations from the
// bus: message and error counts in a time window, heartbeat freshness,
// and heartbeat propagation latency.
package stats

import (
	"sort"
	"sync"
	"time"
)

// AgentSample is a point-in-time view of one agent's health inputs.
type AgentSample struct {
	Agent         string    `json:"agent"`
	Messages      int64     `json:"messages"`
	Errors        int64     `json:"errors"`
	ErrorRate     float64   `json:"error_rate"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
	LatencyMS     float64   `json:"latency_ms"`
}

// latencyAlpha weights new heartbeat latency samples into the EWMA.
const latencyAlpha = 0.3

type bucket struct {
	messages int64
	errors   int64
}

type agentStats struct {
	buckets       map[int64]*bucket
	lastHeartbeat time.Time
	latencyMS     float64
	hasLatency    bool
}

// Tracker accumulates observations inside a rolling window.
type Tracker struct {
	mu     sync.Mutex
	window time.Duration
	agents map[string]*agentStats
}

// New creates a tracker with the given rolling window.
func New(window time.Duration) *Tracker {
	if window <= 0 {
		window = time.Minute
	}
	return &Tracker{
		window: window,
		agents: make(map[string]*agentStats),
	}
}

// ObserveMessage counts one message from the agent.
func (t *Tracker) ObserveMessage(agent string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bucketFor(agent, now).messages++
}

// ObserveError counts one reported error from the agent. Errors also
// count as messages so the rate stays within [0, 1].
func (t *Tracker) ObserveError(agent string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	b := t.bucketFor(agent, now)
	b.messages++
	b.errors++
}

// ObserveHeartbeat records a heartbeat and folds its propagation delay
// into the latency estimate.
func (t *Tracker) ObserveHeartbeat(agent string, sentAt, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	stats := t.statsFor(agent)
	stats.lastHeartbeat = now
	t.bucketFor(agent, now).messages++

	if sentAt.IsZero() || now.Before(sentAt) {
		return
	}
	sample := float64(now.Sub(sentAt).Microseconds()) / 1000.0
	if !stats.hasLatency {
		stats.latencyMS = sample
		stats.hasLatency = true
		return
	}
	stats.latencyMS = latencyAlpha*sample + (1-latencyAlpha)*stats.latencyMS
}

// Snapshot returns the current window's samples sorted by agent name.
func (t *Tracker) Snapshot(now time.Time) []AgentSample {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := now.Add(-t.window).Unix()
	samples := make([]AgentSample, 0, len(t.agents))
	for name, stats := range t.agents {
		var messages, errors int64
		for sec, b := range stats.buckets {
			if sec < cutoff {
				delete(stats.buckets, sec)
				continue
			}
			messages += b.messages
			errors += b.errors
		}

		sample := AgentSample{
			Agent:         name,
			Messages:      messages,
			Errors:        errors,
			LastHeartbeat: stats.lastHeartbeat,
			LatencyMS:     stats.latencyMS,
		}
		if messages > 0 {
			sample.ErrorRate = float64(errors) / float64(messages)
		}
		samples = append(samples, sample)
	}

	sort.Slice(samples, func(i, j int) bool { return samples[i].Agent < samples[j].Agent })
	return samples
}

func (t *Tracker) statsFor(agent string) *agentStats {
	stats, ok := t.agents[agent]
	if !ok {
		stats = &agentStats{buckets: make(map[int64]*bucket)}
		t.agents[agent] = stats
	}
	return stats
}

func (t *Tracker) bucketFor(agent string, now time.Time) *bucket {
	stats := t.statsFor(agent)
	sec := now.Unix()
	b, ok := stats.buckets[sec]
	if !ok {
		b = &bucket{}
		stats.buckets[sec] = b
	}
	return b
}
