package relevance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"market_bot/internal/model"
)

const systemPrompt = "You are a relevance filter for Brazilian marketplace listings. " +
	"Given a search keyword and a numbered list of listing titles, decide which listings " +
	"match what the user is looking for. Keywords may name people, brands, characters or teams. " +
	"Respond only with a JSON array of the 0-based indices of the relevant listings."

type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini asks a Gemini model which titles are relevant.
type Gemini struct {
	gen     generator
	model   string
	timeout time.Duration
	log     *slog.Logger
}

// NewGemini creates a Gemini refiner.
func NewGemini(ctx context.Context, apiKey, modelName string, log *slog.Logger) (*Gemini, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Gemini{gen: client.Models, model: modelName, timeout: 30 * time.Second, log: log}, nil
}

func (g *Gemini) Refine(ctx context.Context, keyword string, listings []model.Listing) ([]model.Listing, error) {
	if len(listings) == 0 {
		return listings, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Keyword: %q\n\nListings:\n", keyword)
	for i, l := range listings {
		fmt.Fprintf(&b, "%d. %s\n", i, l.Title)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	temperature := float32(0)
	resp, err := g.gen.GenerateContent(ctx, g.model,
		[]*genai.Content{{Role: genai.RoleUser, Parts: []*genai.Part{{Text: b.String()}}}},
		&genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: systemPrompt}}},
			Temperature:       &temperature,
			ResponseMIMEType:  "application/json",
			ResponseSchema: &genai.Schema{
				Type:  genai.TypeArray,
				Items: &genai.Schema{Type: genai.TypeInteger},
			},
		},
	)
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}

	indices, err := ParseIndices(resp.Text(), len(listings))
	if err != nil {
		return nil, err
	}
	out := make([]model.Listing, 0, len(indices))
	for _, i := range indices {
		out = append(out, listings[i])
	}
	g.log.Info("relevance refined", "keyword", keyword, "before", len(listings), "after", len(out))
	return out, nil
}

// ParseIndices reads a JSON array of listing indices, dropping out-of-range and
// repeated entries and restoring ascending order.
func ParseIndices(text string, n int) ([]int, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	var raw []float64
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &raw); err != nil {
		return nil, fmt.Errorf("parse relevance indices: %w", err)
	}

	keep := make([]bool, n)
	for _, v := range raw {
		i := int(v)
		if float64(i) != v || i < 0 || i >= n {
			continue
		}
		keep[i] = true
	}
	out := make([]int, 0, len(raw))
	for i, k := range keep {
		if k {
			out = append(out, i)
		}
	}
	return out, nil
}
