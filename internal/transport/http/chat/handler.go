package chat

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.uber.org/fx"

	"github.com/itsmewidii/fitriacookry/internal/dto"
	"github.com/itsmewidii/fitriacookry/internal/presentation/http/response"
	chatsvc "github.com/itsmewidii/fitriacookry/internal/service/chat"
	"github.com/itsmewidii/fitriacookry/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/itsmewidii/fitriacookry/transport/http/chat")

// HeaderSocketID identifies the sending client's realtime connection.
const HeaderSocketID = "X-Socket-ID"

// Module wires HTTP chat handlers.
var Module = fx.Options(
	fx.Provide(NewHandler),
	fx.Invoke(func(g *echo.Group, h *Handler) {
		Register(g, h)
	}),
)

// Dispatcher queues chat messages.
type Dispatcher interface {
	Dispatch(ctx context.Context, in chatsvc.SendInput) (chatsvc.Message, error)
}

// Handler exposes chat endpoints over HTTP.
type Handler struct {
	dispatcher Dispatcher
}

// NewHandler constructs a chat Handler.
func NewHandler(d *chatsvc.Dispatcher) *Handler {
	return &Handler{dispatcher: d}
}

// Register routes with the admin group.
func Register(g *echo.Group, h *Handler) {
	g.POST("/chat/messages", h.send).Name = "chat.send"
}

func (h *Handler) send(c echo.Context) error {
	b := response.New(c)

	var req dto.ChatMessageRequest
	if err := c.Bind(&req); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	if err := c.Validate(&req); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "chat.send")
	defer span.End()

	msg, err := h.dispatcher.Dispatch(ctx, chatsvc.SendInput{
		SenderID:   req.SenderID,
		ReceiverID: req.ReceiverID,
		Body:       req.Body,
		SocketID:   c.Request().Header.Get(HeaderSocketID),
	})
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithStatus(http.StatusAccepted).WithData(msg).Build()
}
