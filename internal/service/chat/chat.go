package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/itsmewidii/fitriacookry/internal/broadcast"
	"github.com/itsmewidii/fitriacookry/internal/config"
	"github.com/itsmewidii/fitriacookry/internal/messaging"
	"github.com/itsmewidii/fitriacookry/pkg/errorbank"
)

var chatTracer = otel.Tracer("github.com/itsmewidii/fitriacookry/service/chat")

// EventNewPrivateMessage is the realtime event subscribers listen for.
const EventNewPrivateMessage = "NewPrivateMessage"

// Module provides the chat listener and dispatcher to Fx.
var Module = fx.Provide(NewListener, NewDispatcher)

// Message is a chat line exchanged between two users.
type Message struct {
	ID         string    `json:"id"`
	SenderID   int64     `json:"sender_id"`
	ReceiverID int64     `json:"receiver_id"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewMessage is queued whenever a user sends a chat message.
type NewMessage struct {
	SenderID   int64   `json:"sender_id"`
	ReceiverID int64   `json:"receiver_id"`
	SocketID   string  `json:"socket_id,omitempty"`
	Message    Message `json:"message"`
}

// NewPrivateMessage is the notification pushed to both participants.
type NewPrivateMessage struct {
	Message Message `json:"message"`
}

// Channel is the private channel a user's clients subscribe to.
func Channel(userID int64) string {
	return "private-chat." + strconv.FormatInt(userID, 10)
}

// Listener fans a NewMessage out to the sender and receiver channels.
type Listener struct {
	broadcaster broadcast.Broadcaster
	logger      *zap.Logger
}

// NewListener constructs a Listener.
func NewListener(b broadcast.Broadcaster, logger *zap.Logger) *Listener {
	return &Listener{broadcaster: b, logger: logger}
}

// Targets returns the channels an event is delivered to, without repeats.
func Targets(ev NewMessage) []string {
	sender, receiver := Channel(ev.SenderID), Channel(ev.ReceiverID)
	if sender == receiver {
		return []string{sender}
	}
	return []string{sender, receiver}
}

// Handle broadcasts one notification per target channel, skipping the
// originating socket. It stops at the first failed broadcast so the event is
// redelivered.
func (l *Listener) Handle(ctx context.Context, ev NewMessage) error {
	ctx, span := chatTracer.Start(ctx, "ChatListener.Handle", trace.WithAttributes(
		attribute.Int64("chat.sender_id", ev.SenderID),
		attribute.Int64("chat.receiver_id", ev.ReceiverID),
	))
	defer span.End()

	note := NewPrivateMessage{Message: ev.Message}
	for _, channel := range Targets(ev) {
		err := l.broadcaster.Broadcast(ctx, broadcast.Message{
			Channel: channel,
			Event:   EventNewPrivateMessage,
			Data:    note,
			Socket:  ev.SocketID,
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "broadcast failed")
			return fmt.Errorf("broadcast to %s: %w", channel, err)
		}
	}

	l.logger.Debug("private message broadcast",
		zap.String("message_id", ev.Message.ID),
		zap.Int64("sender_id", ev.SenderID),
		zap.Int64("receiver_id", ev.ReceiverID),
	)
	return nil
}

// SendInput is a chat line submitted by a client.
type SendInput struct {
	SenderID   int64
	ReceiverID int64
	Body       string
	SocketID   string
}

// Dispatcher queues NewMessage events on the chat topic.
type Dispatcher struct {
	client messaging.Client
	topic  string
	now    func() time.Time
	logger *zap.Logger
}

// NewDispatcher constructs a Dispatcher for the configured chat topic.
func NewDispatcher(client messaging.Client, cfg config.Config, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		client: client,
		topic:  cfg.Messaging.Kafka.ChatTopic,
		now:    time.Now,
		logger: logger,
	}
}

// Dispatch builds the message and queues its NewMessage event.
func (d *Dispatcher) Dispatch(ctx context.Context, in SendInput) (Message, error) {
	ctx, span := chatTracer.Start(ctx, "ChatDispatcher.Dispatch")
	defer span.End()

	msg := Message{
		ID:         uuid.NewString(),
		SenderID:   in.SenderID,
		ReceiverID: in.ReceiverID,
		Body:       in.Body,
		CreatedAt:  d.now().UTC(),
	}
	payload, err := json.Marshal(NewMessage{
		SenderID:   in.SenderID,
		ReceiverID: in.ReceiverID,
		SocketID:   in.SocketID,
		Message:    msg,
	})
	if err != nil {
		return Message{}, errorbank.Internal("failed to encode chat message", errorbank.WithCause(err))
	}

	// Keyed by sender so one user's messages stay ordered.
	key := []byte(strconv.FormatInt(in.SenderID, 10))
	if err := d.client.Publish(ctx, d.topic, key, payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish failed")
		d.logger.Error("dispatch chat message", zap.String("message_id", msg.ID), zap.Error(err))
		return Message{}, errorbank.Internal("failed to dispatch chat message", errorbank.WithCause(err))
	}
	return msg, nil
}
