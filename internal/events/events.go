// Package events publishes listing events to Kafka for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"market_bot/internal/model"
)

// Event types.
const (
	TypeNewListing = "new_listing"
	TypePriceDrop  = "price_drop"
)

// ListingEvent is the message value written to the topic.
type ListingEvent struct {
	Type     string        `json:"event_type"`
	ChatID   int64         `json:"chat_id"`
	Keyword  string        `json:"keyword"`
	Platform string        `json:"platform"`
	Listing  model.Listing `json:"listing"`
	OldPrice string        `json:"old_price,omitempty"`
	FoundAt  time.Time     `json:"found_at"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes listing events keyed by owner, so one owner's events stay ordered.
type Publisher struct {
	w   messageWriter
	now func() time.Time
	log *slog.Logger
}

// NewPublisher creates a Kafka publisher for the given brokers and topic.
func NewPublisher(brokers []string, topic string, log *slog.Logger) *Publisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
	return &Publisher{w: w, now: time.Now, log: log}
}

func (p *Publisher) NotifyNew(ctx context.Context, chatID int64, keyword, platform string, l model.Listing) error {
	return p.publish(ctx, ListingEvent{
		Type:     TypeNewListing,
		ChatID:   chatID,
		Keyword:  keyword,
		Platform: platform,
		Listing:  l,
	})
}

func (p *Publisher) NotifyPriceDrop(ctx context.Context, chatID int64, keyword, platform string, l model.Listing, oldPrice string) error {
	return p.publish(ctx, ListingEvent{
		Type:     TypePriceDrop,
		ChatID:   chatID,
		Keyword:  keyword,
		Platform: platform,
		Listing:  l,
		OldPrice: oldPrice,
	})
}

// Close flushes pending messages and closes the writer.
func (p *Publisher) Close() error {
	return p.w.Close()
}

func (p *Publisher) publish(ctx context.Context, ev ListingEvent) error {
	ev.FoundAt = p.now().UTC()
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", ev.Type, err)
	}
	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(ev.ChatID, 10)),
		Value: data,
		Time:  ev.FoundAt,
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s event: %w", ev.Type, err)
	}
	p.log.Debug("event published", "type", ev.Type, "chat_id", ev.ChatID, "listing", ev.Listing.ID)
	return nil
}
