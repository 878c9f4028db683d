package broadcast

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/itsmewidii/fitriacookry/internal/config"
)

var meter = otel.Meter("github.com/itsmewidii/fitriacookry/broadcast")

// Message is a single notification pushed to one channel.
type Message struct {
	Channel string
	Event   string
	Data    any
	// Socket is the originating connection, excluded from delivery.
	Socket string
}

// Envelope is the wire format subscribers receive.
type Envelope struct {
	Event  string `json:"event"`
	Data   any    `json:"data"`
	Socket string `json:"socket,omitempty"`
}

// Broadcaster pushes notifications to realtime subscribers.
type Broadcaster interface {
	Broadcast(ctx context.Context, msg Message) error
}

// Module provides the configured broadcaster to Fx.
var Module = fx.Provide(New)

// New selects the broadcaster for the configured driver.
func New(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (Broadcaster, error) {
	counter, err := meter.Int64Counter("broadcast.messages.sent",
		metric.WithDescription("Notifications handed to the broadcast transport"))
	if err != nil {
		return nil, err
	}

	switch cfg.Broadcast.Driver {
	case "redis":
		return newRedisBroadcaster(lc, cfg.Broadcast, counter, logger), nil
	case "log":
		return NewLogBroadcaster(cfg.Broadcast.ChannelPrefix, logger), nil
	case "noop":
		logger.Info("broadcasting disabled; using noop broadcaster")
		return Noop{}, nil
	default:
		return nil, fmt.Errorf("unsupported broadcast driver: %s", cfg.Broadcast.Driver)
	}
}

// Encode renders msg as the JSON envelope published on the channel.
func Encode(msg Message) ([]byte, error) {
	return json.Marshal(Envelope{Event: msg.Event, Data: msg.Data, Socket: msg.Socket})
}

// Noop discards every message.
type Noop struct{}

func (Noop) Broadcast(context.Context, Message) error { return nil }

// LogBroadcaster writes messages to the logger instead of a transport.
type LogBroadcaster struct {
	prefix string
	logger *zap.Logger
}

// NewLogBroadcaster builds a broadcaster for local development.
func NewLogBroadcaster(prefix string, logger *zap.Logger) *LogBroadcaster {
	return &LogBroadcaster{prefix: prefix, logger: logger}
}

func (l *LogBroadcaster) Broadcast(_ context.Context, msg Message) error {
	payload, err := Encode(msg)
	if err != nil {
		return err
	}
	l.logger.Info("broadcasting",
		zap.String("channel", l.prefix+msg.Channel),
		zap.String("event", msg.Event),
		zap.ByteString("payload", payload),
	)
	return nil
}

type redisBroadcaster struct {
	client  *goredis.Client
	prefix  string
	counter metric.Int64Counter
}

func newRedisBroadcaster(lc fx.Lifecycle, cfg config.Broadcast, counter metric.Int64Counter, logger *zap.Logger) *redisBroadcaster {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("ping broadcast redis: %w", err)
			}
			logger.Info("redis broadcaster connected", zap.String("addr", cfg.Redis.Addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("closing redis broadcaster")
			return client.Close()
		},
	})

	return &redisBroadcaster{client: client, prefix: cfg.ChannelPrefix, counter: counter}
}

func (r *redisBroadcaster) Broadcast(ctx context.Context, msg Message) error {
	payload, err := Encode(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.Event, err)
	}
	channel := r.prefix + msg.Channel
	if err := r.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", channel, err)
	}
	r.counter.Add(ctx, 1, metric.WithAttributes(attribute.String("event", msg.Event)))
	return nil
}
