package order

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/itsmewidii/fitriacookry/internal/config"
	"github.com/itsmewidii/fitriacookry/internal/dto"
	"github.com/itsmewidii/fitriacookry/internal/entity"
	"github.com/itsmewidii/fitriacookry/internal/export"
	"github.com/itsmewidii/fitriacookry/internal/presentation/http/flash"
	"github.com/itsmewidii/fitriacookry/internal/presentation/http/response"
	"github.com/itsmewidii/fitriacookry/internal/presentation/http/view"
	repo "github.com/itsmewidii/fitriacookry/internal/repository/order"
	service "github.com/itsmewidii/fitriacookry/internal/service/order"
	"github.com/itsmewidii/fitriacookry/internal/storage"
	"github.com/itsmewidii/fitriacookry/internal/validation"
	"github.com/itsmewidii/fitriacookry/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/itsmewidii/fitriacookry/transport/http/order")

const (
	proofField   = "proof_transfer"
	maxPageSize  = 100
	defaultLimit = 10
)

// Meta names the order pages and routes.
var Meta = view.Meta{
	Title:    "Pesanan",
	Subtitle: "List Data Pesanan",
	Route:    "orders.",
	View:     "order.",
}

// Orders is the order service as seen by the HTTP layer.
type Orders interface {
	List(ctx context.Context, p repo.ListParams) (service.Page, error)
	Stats(ctx context.Context, r service.Range) (service.Stats, error)
	Uniques(ctx context.Context) ([]entity.Unique, error)
	Users(ctx context.Context) ([]entity.User, error)
	Create(ctx context.Context, in service.CreateInput) (*entity.Order, error)
	Get(ctx context.Context, id int64) (*entity.Order, error)
	Update(ctx context.Context, id int64, in service.UpdateInput) error
	Destroy(ctx context.Context, id int64) error
	Export(ctx context.Context, w io.Writer) error
	Location() *time.Location
}

// Handler exposes order endpoints over HTTP.
type Handler struct {
	svc       Orders
	validator *validation.Validator
	flash     *flash.Store
	disk      *storage.Disk
	proofRule validation.FileRule
	logger    *zap.Logger
}

// NewHandler constructs an order Handler.
func NewHandler(svc *service.Service, v *validation.Validator, fl *flash.Store, disk *storage.Disk, cfg config.Config, logger *zap.Logger) *Handler {
	return newHandler(svc, v, fl, disk, cfg, logger)
}

func newHandler(svc Orders, v *validation.Validator, fl *flash.Store, disk *storage.Disk, cfg config.Config, logger *zap.Logger) *Handler {
	return &Handler{
		svc:       svc,
		validator: v,
		flash:     fl,
		disk:      disk,
		proofRule: validation.FileRule{
			Required:   true,
			Extensions: cfg.Storage.AllowedExts,
			MaxBytes:   cfg.Storage.MaxUpload,
		},
		logger: logger,
	}
}

// Register routes with the admin group.
func Register(g *echo.Group, h *Handler) {
	g.GET("/orders", h.index).Name = Meta.RouteName("index")
	g.GET("/orders/data", h.data).Name = Meta.RouteName("data")
	g.GET("/orders/stats", h.stats).Name = Meta.RouteName("stats")
	g.GET("/orders/export", h.export).Name = Meta.RouteName("export")
	g.GET("/orders/create", h.create).Name = Meta.RouteName("create")
	g.POST("/orders", h.store).Name = Meta.RouteName("store")
	g.GET("/orders/:id", h.show).Name = Meta.RouteName("show")
	g.GET("/orders/:id/edit", h.edit).Name = Meta.RouteName("edit")
	g.PUT("/orders/:id", h.update).Name = Meta.RouteName("update")
	g.PATCH("/orders/:id", h.update)
	g.DELETE("/orders/:id", h.destroy).Name = Meta.RouteName("destroy")
}

type storeForm struct {
	UniqueID      string `form:"unique_id" validate:"required,number"`
	UserID        string `form:"user_id" validate:"omitempty,number"`
	Name          string `form:"name" validate:"required,max=255"`
	NoWhatsapp    string `form:"no_whatsapp" validate:"required,max=30"`
	Email         string `form:"email" validate:"required,email"`
	Shipping      string `form:"shipping" validate:"omitempty,max=100"`
	ShippingCode  string `form:"shipping_code" validate:"omitempty,max=100"`
	ShippingPrice string `form:"shipping_price" validate:"omitempty,numeric"`
	TotalQty      string `form:"total_qty" validate:"required,number"`
	TotalPrice    string `form:"total_price" validate:"required,numeric"`
	Address       string `form:"address" validate:"required"`
	Status        string `form:"status" validate:"omitempty,max=50"`
}

type updateForm struct {
	Name          string `form:"name" validate:"required,max=255"`
	ShippingPrice string `form:"shipping_price" validate:"required,numeric"`
	ShippingCode  string `form:"shipping_code" validate:"required,max=100"`
	Shipping      string `form:"shipping" validate:"required,max=100"`
	NoWhatsapp    string `form:"no_whatsapp" validate:"required,max=30"`
	Email         string `form:"email" validate:"required,email"`
	TotalQty      string `form:"total_qty" validate:"required,number"`
	TotalPrice    string `form:"total_price" validate:"required,numeric"`
	Address       string `form:"address" validate:"required"`
	Status        string `form:"status" validate:"required,max=50"`
}

type createPage struct {
	Uniques []entity.Unique
}

type detailPage struct {
	Order *entity.Order
	Users []entity.User
}

func (h *Handler) index(c echo.Context) error {
	return h.render(c, http.StatusOK, "index", &view.Page{})
}

func (h *Handler) data(c echo.Context) error {
	ctx, span := httpTracer.Start(c.Request().Context(), "orders.data")
	defer span.End()

	draw, _ := strconv.Atoi(c.QueryParam("draw"))
	start, _ := strconv.Atoi(c.QueryParam("start"))
	length, err := strconv.Atoi(c.QueryParam("length"))
	if err != nil || length <= 0 {
		length = defaultLimit
	}
	if length > maxPageSize {
		length = maxPageSize
	}
	if start < 0 {
		start = 0
	}

	page, err := h.svc.List(ctx, repo.ListParams{
		Search: strings.TrimSpace(c.QueryParam("search[value]")),
		Offset: start,
		Limit:  length,
	})
	if err != nil {
		return err
	}

	loc := h.svc.Location()
	rows := make([]dto.OrderRow, 0, len(page.Orders))
	for i := range page.Orders {
		rows = append(rows, h.toRow(c, &page.Orders[i], loc))
	}

	return c.JSON(http.StatusOK, dto.DataTable[dto.OrderRow]{
		Draw:            draw,
		RecordsTotal:    page.Total,
		RecordsFiltered: page.Filtered,
		Data:            rows,
	})
}

func (h *Handler) stats(c echo.Context) error {
	r := service.ParseRange(c.QueryParam("range"))
	ctx, span := httpTracer.Start(c.Request().Context(), "orders.stats", trace.WithAttributes(attribute.String("stats.range", string(r))))
	defer span.End()

	stats, err := h.svc.Stats(ctx, r)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *Handler) export(c echo.Context) error {
	ctx, span := httpTracer.Start(c.Request().Context(), "orders.export")
	defer span.End()

	var buf bytes.Buffer
	if err := h.svc.Export(ctx, &buf); err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", export.OrdersFilename))
	return c.Blob(http.StatusOK, export.ContentType, buf.Bytes())
}

func (h *Handler) create(c echo.Context) error {
	uniques, err := h.svc.Uniques(c.Request().Context())
	if err != nil {
		return err
	}
	return h.render(c, http.StatusOK, "create", &view.Page{Data: createPage{Uniques: uniques}})
}

func (h *Handler) store(c echo.Context) error {
	ctx, span := httpTracer.Start(c.Request().Context(), "orders.store")
	defer span.End()

	var form storeForm
	if err := c.Bind(&form); err != nil {
		return errorbank.BadRequest("invalid form", errorbank.WithCause(err))
	}

	fields := h.validator.Fields(&form)
	proof := formFile(c, proofField)
	if msg := h.proofRule.Check(proofField, proof); msg != "" {
		fields = withField(fields, proofField, msg)
	}
	if len(fields) > 0 {
		return h.createInvalid(c, fields)
	}

	in, err := form.input()
	if err != nil {
		return h.createInvalid(c, map[string]string{"_": err.Error()})
	}

	file, err := proof.Open()
	if err != nil {
		return errorbank.BadRequest("unreadable upload", errorbank.WithCause(err))
	}
	defer file.Close()
	in.Proof = &service.Upload{Name: proof.Filename, Content: file}

	order, err := h.svc.Create(ctx, in)
	switch {
	case errorbank.Is(err, errorbank.KindUnprocessableEntity):
		return h.createInvalid(c, errorbank.Fields(err))
	case err != nil:
		h.logger.Error("create order failed", zap.Error(err))
		h.flash.Error(c, "Created", "Create "+Meta.Title+" Failed")
		return h.back(c, c.Echo().Reverse(Meta.RouteName("create")))
	}

	span.SetAttributes(attribute.Int64("order.id", order.ID))
	h.flash.Success(c, "Created", "Create "+Meta.Title+" Success")
	return c.Redirect(http.StatusSeeOther, c.Echo().Reverse(Meta.RouteName("index")))
}

func (h *Handler) createInvalid(c echo.Context, fields map[string]string) error {
	uniques, err := h.svc.Uniques(c.Request().Context())
	if err != nil {
		return err
	}
	return h.render(c, http.StatusUnprocessableEntity, "create", &view.Page{
		Data:   createPage{Uniques: uniques},
		Errors: fields,
		Old:    oldInput(c),
	})
}

func (h *Handler) show(c echo.Context) error {
	page, err := h.detail(c)
	if err != nil {
		return err
	}
	return h.render(c, http.StatusOK, "detail", &view.Page{Data: page})
}

func (h *Handler) edit(c echo.Context) error {
	page, err := h.detail(c)
	if err != nil {
		return err
	}
	return h.render(c, http.StatusOK, "edit", &view.Page{Data: page})
}

func (h *Handler) detail(c echo.Context) (detailPage, error) {
	id, err := parseID(c)
	if err != nil {
		return detailPage{}, err
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.detail", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := h.svc.Get(ctx, id)
	if err != nil {
		return detailPage{}, err
	}
	users, err := h.svc.Users(ctx)
	if err != nil {
		return detailPage{}, err
	}
	return detailPage{Order: order, Users: users}, nil
}

func (h *Handler) update(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	ctx, span := httpTracer.Start(c.Request().Context(), "orders.update", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	var form updateForm
	if err := c.Bind(&form); err != nil {
		return errorbank.BadRequest("invalid form", errorbank.WithCause(err))
	}

	fields := h.validator.Fields(&form)
	optional := h.proofRule
	optional.Required = false
	if msg := optional.Check(proofField, formFile(c, proofField)); msg != "" {
		fields = withField(fields, proofField, msg)
	}
	if len(fields) > 0 {
		page, err := h.detail(c)
		if err != nil {
			return err
		}
		return h.render(c, http.StatusUnprocessableEntity, "edit", &view.Page{Data: page, Errors: fields, Old: oldInput(c)})
	}

	in, err := form.input()
	if err != nil {
		return errorbank.BadRequest(err.Error())
	}

	// A submitted proof passes validation but is never stored over the existing one.
	if err := h.svc.Update(ctx, id, in); err != nil {
		h.logger.Warn("update order failed", zap.Int64("id", id), zap.Error(err))
		h.flash.Error(c, "Updated", "Update "+Meta.Title+" Failed")
		return h.back(c, c.Echo().Reverse(Meta.RouteName("edit"), id))
	}

	h.flash.Success(c, "Updated", "Update "+Meta.Title+" Success")
	return c.Redirect(http.StatusSeeOther, c.Echo().Reverse(Meta.RouteName("index")))
}

func (h *Handler) destroy(c echo.Context) error {
	b := response.New(c)

	id, err := parseID(c)
	if err != nil {
		return b.WithMessage("Order not found").WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.destroy", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	if err := h.svc.Destroy(ctx, id); err != nil {
		if errorbank.Is(err, errorbank.KindNotFound) {
			return b.WithMessage("Order not found").WithError(err).Build()
		}
		h.logger.Error("delete order failed", zap.Int64("id", id), zap.Error(err))
		return b.WithStatus(http.StatusInternalServerError).
			WithMessage("Failed to delete " + Meta.Title).
			WithError(err).
			Build()
	}

	return b.WithMessage("Successfully deleted " + Meta.Title).Build()
}

func (h *Handler) render(c echo.Context, status int, page string, p *view.Page) error {
	p.Meta = Meta
	if p.Flash == nil {
		p.Flash = h.flash.Pop(c)
	}
	return c.Render(status, Meta.Template(page), p)
}

// back redirects to the referring page when it belongs to this host.
func (h *Handler) back(c echo.Context, fallback string) error {
	target := fallback
	if ref, err := url.Parse(c.Request().Referer()); err == nil && ref.Path != "" && (ref.Host == "" || ref.Host == c.Request().Host) {
		target = ref.RequestURI()
	}
	return c.Redirect(http.StatusSeeOther, target)
}

func (h *Handler) toRow(c echo.Context, o *entity.Order, loc *time.Location) dto.OrderRow {
	e := c.Echo()
	row := dto.OrderRow{
		ID:         o.ID,
		Name:       o.Name,
		NoWhatsapp: o.NoWhatsapp,
		Email:      o.Email,
		TotalQty:   o.TotalQty,
		TotalPrice: view.Money(o.TotalPrice),
		Status:     o.Status,
		CreatedAt:  o.CreatedAt.In(loc).Format("02 Jan 2006 15:04"),
		ShowURL:    e.Reverse(Meta.RouteName("show"), o.ID),
		EditURL:    e.Reverse(Meta.RouteName("edit"), o.ID),
		DeleteURL:  e.Reverse(Meta.RouteName("destroy"), o.ID),
		UpdatedAt:  o.UpdatedAt,
	}
	if o.HasProof() && h.disk != nil {
		row.ProofURL = h.disk.URL(*o.ProofTransfer)
	}
	return row
}

func (f storeForm) input() (service.CreateInput, error) {
	uniqueID, err := strconv.ParseInt(f.UniqueID, 10, 64)
	if err != nil {
		return service.CreateInput{}, fmt.Errorf("unique_id: %w", err)
	}
	qty, err := strconv.ParseInt(f.TotalQty, 10, 64)
	if err != nil {
		return service.CreateInput{}, fmt.Errorf("total_qty: %w", err)
	}
	total, err := decimal.NewFromString(f.TotalPrice)
	if err != nil {
		return service.CreateInput{}, fmt.Errorf("total_price: %w", err)
	}
	shipping := decimal.Zero
	if f.ShippingPrice != "" {
		if shipping, err = decimal.NewFromString(f.ShippingPrice); err != nil {
			return service.CreateInput{}, fmt.Errorf("shipping_price: %w", err)
		}
	}

	in := service.CreateInput{
		UniqueID:      uniqueID,
		Name:          f.Name,
		NoWhatsapp:    f.NoWhatsapp,
		Email:         f.Email,
		Shipping:      f.Shipping,
		ShippingCode:  f.ShippingCode,
		ShippingPrice: shipping,
		TotalQty:      qty,
		TotalPrice:    total,
		Address:       f.Address,
		Status:        f.Status,
	}
	if f.UserID != "" {
		userID, err := strconv.ParseInt(f.UserID, 10, 64)
		if err != nil {
			return service.CreateInput{}, fmt.Errorf("user_id: %w", err)
		}
		in.UserID = &userID
	}
	return in, nil
}

func (f updateForm) input() (service.UpdateInput, error) {
	qty, err := strconv.ParseInt(f.TotalQty, 10, 64)
	if err != nil {
		return service.UpdateInput{}, fmt.Errorf("total_qty: %w", err)
	}
	total, err := decimal.NewFromString(f.TotalPrice)
	if err != nil {
		return service.UpdateInput{}, fmt.Errorf("total_price: %w", err)
	}
	shipping, err := decimal.NewFromString(f.ShippingPrice)
	if err != nil {
		return service.UpdateInput{}, fmt.Errorf("shipping_price: %w", err)
	}
	return service.UpdateInput{
		Name:          f.Name,
		ShippingPrice: shipping,
		ShippingCode:  f.ShippingCode,
		Shipping:      f.Shipping,
		NoWhatsapp:    f.NoWhatsapp,
		Email:         f.Email,
		TotalQty:      qty,
		TotalPrice:    total,
		Address:       f.Address,
		Status:        f.Status,
	}, nil
}

func parseID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errorbank.NotFound("order not found")
	}
	return id, nil
}

func formFile(c echo.Context, name string) *multipart.FileHeader {
	fh, err := c.FormFile(name)
	if err != nil || fh == nil || fh.Filename == "" {
		return nil
	}
	return fh
}

func oldInput(c echo.Context) url.Values {
	values, err := c.FormParams()
	if err != nil {
		return nil
	}
	old := make(url.Values, len(values))
	for k, v := range values {
		if k == "_method" {
			continue
		}
		old[k] = v
	}
	return old
}

func withField(fields map[string]string, name, msg string) map[string]string {
	if fields == nil {
		fields = map[string]string{}
	}
	fields[name] = msg
	return fields
}
