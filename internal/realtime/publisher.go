package realtime

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Event names published on group channels.
const (
	EventNewMessage     = "new-message"
	EventMessageDeleted = "message-deleted"
	EventUserBanned     = "user-banned"
)

// Envelope is the wire format published to the transport. Subscribers route
// on Channel and Event; Data carries the event payload.
type Envelope struct {
	ID        string    `json:"id"`      // Unique event id.
	Channel   string    `json:"channel"` // Destination channel name.
	Event     string    `json:"event"`   // Event name.
	Data      any       `json:"data"`    // Event payload.
	Timestamp time.Time `json:"ts"`      // Publish time.
}

// PublishResult describes the outcome of a publish attempt. Publish failures
// are never propagated as request failures; callers log and move on.
type PublishResult struct {
	OK     bool   // Whether the event was handed to the transport.
	Reason string // Failure reason when OK is false.
	Status int    // Optional upstream status code.
}

// Publisher pushes events to the realtime transport, best effort.
type Publisher interface {
	Publish(ctx context.Context, channel, event string, payload any) PublishResult
}

// publishTimeout bounds a single publish attempt independently of the caller.
const publishTimeout = 5 * time.Second

// RedisPublisher fans events out through redis pub/sub. Subscribing edge
// servers relay them to connected websocket clients.
type RedisPublisher struct {
	client *redis.Client
	prefix string
}

// NewRedisPublisher constructs a RedisPublisher.
func NewRedisPublisher(client *redis.Client, prefix string) *RedisPublisher {
	return &RedisPublisher{
		client: client,
		prefix: strings.TrimSpace(prefix),
	}
}

// Publish marshals the envelope and publishes it on the prefixed channel.
func (p *RedisPublisher) Publish(ctx context.Context, channel, event string, payload any) PublishResult {
	if p == nil || p.client == nil {
		return PublishResult{OK: false, Reason: "publisher not configured"}
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	envelope := Envelope{
		ID:        uuid.NewString(),
		Channel:   channel,
		Event:     event,
		Data:      payload,
		Timestamp: time.Now().UTC(),
	}
	data, errMarshal := json.Marshal(envelope)
	if errMarshal != nil {
		return PublishResult{OK: false, Reason: "marshal event: " + errMarshal.Error()}
	}

	if errPublish := p.client.Publish(ctx, p.buildChannel(channel), data).Err(); errPublish != nil {
		log.WithError(errPublish).WithFields(log.Fields{
			"channel": channel,
			"event":   event,
		}).Warn("realtime: publish failed")
		return PublishResult{OK: false, Reason: errPublish.Error(), Status: 503}
	}
	return PublishResult{OK: true}
}

func (p *RedisPublisher) buildChannel(channel string) string {
	if p.prefix == "" {
		return channel
	}
	return p.prefix + ":" + channel
}

// NopPublisher drops every event. Used when no transport is configured;
// clients fall back to polling the read APIs.
type NopPublisher struct{}

// Publish discards the event and reports success.
func (NopPublisher) Publish(context.Context, string, string, any) PublishResult {
	return PublishResult{OK: true}
}
