package models

import "time"

// NewsItem is one piece of media content tied to a symbol.
type NewsItem struct {
	ID          string    `json:"id"`
	Symbol      string    `json:"symbol"`
	Source      string    `json:"source"`
	Headline    string    `json:"headline"`
	Body        string    `json:"body"`
	PublishedAt time.Time `json:"published_at"`
}

// SentimentSignal is an aggregate sentiment reading strong enough to act on.
type SentimentSignal struct {
	ID         string    `json:"id"`
	Symbol     string    `json:"symbol"`
	Direction  string    `json:"direction"`
	Confidence float64   `json:"confidence"`
	Score      float64   `json:"score"`
	StdDev     float64   `json:"std_dev"`
	NumSources int       `json:"num_sources"`
	Timestamp  time.Time `json:"timestamp"`
	ExpiresAt  time.Time `json:"expires_at"`
}
