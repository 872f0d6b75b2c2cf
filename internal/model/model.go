// Package model defines the domain types used across the application.
package model

import (
	"strings"
	"time"
)

// Watch is one user's interest in one keyword on one platform.
type Watch struct {
	ID        int64
	ChatID    int64
	Keyword   string
	Platform  string
	MaxPrice  *float64
	Filters   string
	CreatedAt time.Time
}

// Listing is a normalized marketplace item.
type Listing struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Price string `json:"price"`
	URL   string `json:"url"`
	Image string `json:"image,omitempty"`
}

// SeenKey identifies one entry of the dedup ledger.
type SeenKey struct {
	ListingID string
	Keyword   string
	ChatID    int64
	Platform  string
}

// SeenRecord is a dedup ledger entry.
type SeenRecord struct {
	SeenKey
	Title       string
	Price       string
	URL         string
	FirstSeenAt time.Time
}

// CycleSummary describes the outcome of one check cycle.
type CycleSummary struct {
	ID           string         `json:"id"`
	StartedAt    time.Time      `json:"started_at"`
	Duration     time.Duration  `json:"duration"`
	Groups       int            `json:"groups"`
	Failed       int            `json:"failed"`
	FailedGroups []string       `json:"failed_groups,omitempty"`
	TotalNew     int            `json:"total_new"`
	PriceDrops   int            `json:"price_drops"`
	ByPlatform   map[string]int `json:"by_platform"`
}

// NormalizeKeyword lowercases and trims a user-typed keyword.
func NormalizeKeyword(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
