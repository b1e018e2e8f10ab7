// Package models defines the monitor's alert types.
package models

import "time"

// AlertLevel grades how urgent an alert is.
type AlertLevel string

const (
	LevelInfo     AlertLevel = "INFO"
	LevelWarning  AlertLevel = "WARNING"
	LevelError    AlertLevel = "ERROR"
	LevelCritical AlertLevel = "CRITICAL"
)

// Alert is one threshold breach observed by the monitor.
type Alert struct {
	ID        string     `json:"id"`
	Level     AlertLevel `json:"level"`
	Source    string     `json:"source"`
	Metric    string     `json:"metric"`
	Message   string     `json:"message"`
	Value     float64    `json:"value"`
	Threshold float64    `json:"threshold"`
	RaisedAt  time.Time  `json:"raised_at"`
	LastSeen  time.Time  `json:"last_seen"`
	// Count is how many consecutive sweeps observed the breach.
	Count int `json:"count"`
}

// Key identifies the breach for deduplication: the same source and
// metric re-firing updates the existing alert instead of raising a
// new one.
func (a *Alert) Key() string {
	return a.Source + ":" + a.Metric
}
