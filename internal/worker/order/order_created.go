package order

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/itsmewidii/fitriacookry/internal/broadcast"
	"github.com/itsmewidii/fitriacookry/internal/config"
	"github.com/itsmewidii/fitriacookry/internal/messaging"
	ordersvc "github.com/itsmewidii/fitriacookry/internal/service/order"
	"github.com/itsmewidii/fitriacookry/internal/worker"
)

var workerTracer = otel.Tracer("github.com/itsmewidii/fitriacookry/worker/order")

const (
	// DashboardChannel is where admin dashboards listen for new orders.
	DashboardChannel = "admin.orders"
	// EventOrderCreated is the realtime event name on DashboardChannel.
	EventOrderCreated = "OrderCreated"
)

// Module registers order-related worker handlers.
var Module = fx.Module("worker_order",
	fx.Provide(
		fx.Annotate(
			NewOrderCreatedHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
	),
)

// NewOrderCreatedHandler relays order creations to the admin dashboard channel.
func NewOrderCreatedHandler(logger *zap.Logger, cfg config.Config, b broadcast.Broadcaster) worker.HandlerRegistration {
	handler := func(ctx context.Context, msg messaging.Message) error {
		ctx, span := workerTracer.Start(ctx, "worker.orders.process", trace.WithAttributes(
			attribute.String("messaging.topic", msg.Topic),
		))
		defer span.End()

		var event ordersvc.OrderCreatedEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			logger.Error("failed to decode order created", zap.Error(err))

			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")

			// Undecodable payloads would be redelivered forever.
			return nil
		}
		if event.Event != "" && event.Event != ordersvc.EventOrderCreated {
			logger.Debug("skipping order event", zap.String("event", event.Event))
			return nil
		}

		err := b.Broadcast(ctx, broadcast.Message{
			Channel: DashboardChannel,
			Event:   EventOrderCreated,
			Data:    event,
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "broadcast error")
			return err
		}

		logger.Info("order created event processed",
			zap.Int64("id", event.ID),
			zap.String("name", event.Name),
			zap.String("status", event.Status),
		)
		return nil
	}

	return worker.HandlerRegistration{
		Topic:   cfg.Messaging.Kafka.OrdersTopic,
		Handler: handler,
	}
}
