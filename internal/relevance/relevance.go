// Package relevance narrows raw search results down to listings that match what the user meant.
package relevance

import (
	"context"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"market_bot/internal/model"
)

// Refiner returns the subset of listings relevant to keyword, preserving order.
// Callers treat an error as "keep everything".
type Refiner interface {
	Refine(ctx context.Context, keyword string, listings []model.Listing) ([]model.Listing, error)
}

// Passthrough keeps every listing.
type Passthrough struct{}

func (Passthrough) Refine(_ context.Context, _ string, listings []model.Listing) ([]model.Listing, error) {
	return listings, nil
}

// Keyword keeps listings whose title contains every significant keyword token,
// ignoring case and accents.
type Keyword struct {
	// MinTokenLen drops short tokens such as "de" or "da". Defaults to 3.
	MinTokenLen int
}

func (k Keyword) Refine(_ context.Context, keyword string, listings []model.Listing) ([]model.Listing, error) {
	minLen := k.MinTokenLen
	if minLen <= 0 {
		minLen = 3
	}
	var tokens []string
	for _, tok := range strings.Fields(fold(keyword)) {
		if len([]rune(tok)) >= minLen {
			tokens = append(tokens, tok)
		}
	}
	if len(tokens) == 0 {
		return listings, nil
	}

	out := make([]model.Listing, 0, len(listings))
	for _, l := range listings {
		title := fold(l.Title)
		match := true
		for _, tok := range tokens {
			if !strings.Contains(title, tok) {
				match = false
				break
			}
		}
		if match {
			out = append(out, l)
		}
	}
	return out, nil
}

func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}
