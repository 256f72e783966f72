package activity

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"devhub/internal/util"
	"devhub/pkg/domain"
)

// Feed records activity events and serves the newest entries for the
// home feed.
type Feed interface {
	Publish(ctx context.Context, event domain.Event) error
	Recent(ctx context.Context, limit int) ([]domain.Event, error)
}

const defaultMaxLen = 10000

// RedisFeed keeps the activity log in a capped Redis stream.
type RedisFeed struct {
	client *redis.Client
	stream string
	maxLen int64
}

// RedisFeedConfig configures the Redis-backed feed.
type RedisFeedConfig struct {
	Addr     string
	Password string
	Stream   string
	MaxLen   int64
}

// NewRedisFeed builds a Redis stream backed activity feed.
func NewRedisFeed(cfg RedisFeedConfig) (*RedisFeed, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, errors.New("redis addr required")
	}
	stream := strings.TrimSpace(cfg.Stream)
	if stream == "" {
		stream = "devhub:activity"
	}
	maxLen := cfg.MaxLen
	if maxLen <= 0 {
		maxLen = defaultMaxLen
	}
	return &RedisFeed{
		client: redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Password}),
		stream: stream,
		maxLen: maxLen,
	}, nil
}

// Publish appends an event to the stream.
func (f *RedisFeed) Publish(ctx context.Context, event domain.Event) error {
	if event.ID == "" {
		event.ID = util.NewID()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	return f.client.XAdd(ctx, &redis.XAddArgs{
		Stream: f.stream,
		MaxLen: f.maxLen,
		Approx: true,
		Values: map[string]any{
			"id":           event.ID,
			"actor_id":     event.ActorID,
			"verb":         event.Verb,
			"project_id":   event.ProjectID,
			"project_name": event.ProjectName,
			"checkin_id":   event.CheckinID,
			"message":      event.Message,
			"version":      event.Version,
			"created_at":   strconv.FormatInt(event.CreatedAt.UnixMilli(), 10),
		},
	}).Err()
}

// Recent returns up to limit events, newest first.
func (f *RedisFeed) Recent(ctx context.Context, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	messages, err := f.client.XRevRangeN(ctx, f.stream, "+", "-", int64(limit)).Result()
	if err != nil {
		return nil, err
	}
	events := make([]domain.Event, 0, len(messages))
	for _, msg := range messages {
		events = append(events, decodeEvent(msg.Values))
	}
	return events, nil
}

func decodeEvent(values map[string]any) domain.Event {
	event := domain.Event{
		ID:          stringValue(values["id"]),
		ActorID:     stringValue(values["actor_id"]),
		Verb:        stringValue(values["verb"]),
		ProjectID:   stringValue(values["project_id"]),
		ProjectName: stringValue(values["project_name"]),
		CheckinID:   stringValue(values["checkin_id"]),
		Message:     stringValue(values["message"]),
		Version:     stringValue(values["version"]),
	}
	if millis, err := strconv.ParseInt(stringValue(values["created_at"]), 10, 64); err == nil {
		event.CreatedAt = time.UnixMilli(millis).UTC()
	}
	return event
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}
