package chat

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/itsmewidii/fitriacookry/internal/config"
	"github.com/itsmewidii/fitriacookry/internal/messaging"
	chatsvc "github.com/itsmewidii/fitriacookry/internal/service/chat"
	"github.com/itsmewidii/fitriacookry/internal/worker"
)

var workerTracer = otel.Tracer("github.com/itsmewidii/fitriacookry/worker/chat")

// Module registers chat worker handlers.
var Module = fx.Module("worker_chat",
	fx.Provide(
		fx.Annotate(
			NewMessageHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
	),
)

// NewMessageHandler feeds queued NewMessage events to the listener.
func NewMessageHandler(logger *zap.Logger, cfg config.Config, listener *chatsvc.Listener) worker.HandlerRegistration {
	handler := func(ctx context.Context, msg messaging.Message) error {
		ctx, span := workerTracer.Start(ctx, "worker.chat.process", trace.WithAttributes(
			attribute.String("messaging.topic", msg.Topic),
			attribute.Int64("messaging.offset", msg.Offset),
		))
		defer span.End()

		var ev chatsvc.NewMessage
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			logger.Error("failed to decode chat message", zap.Error(err))
			span.RecordError(err)
			return nil
		}
		return listener.Handle(ctx, ev)
	}

	return worker.HandlerRegistration{
		Topic:   cfg.Messaging.Kafka.ChatTopic,
		Handler: handler,
	}
}
