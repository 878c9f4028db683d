package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/itsmewidii/fitriacookry/internal/cache"
	"github.com/itsmewidii/fitriacookry/internal/config"
	"github.com/itsmewidii/fitriacookry/internal/entity"
	"github.com/itsmewidii/fitriacookry/internal/export"
	"github.com/itsmewidii/fitriacookry/internal/messaging"
	"github.com/itsmewidii/fitriacookry/internal/repository/lookup"
	repo "github.com/itsmewidii/fitriacookry/internal/repository/order"
	"github.com/itsmewidii/fitriacookry/internal/storage"
	"github.com/itsmewidii/fitriacookry/pkg/errorbank"
)

var (
	serviceTracer = otel.Tracer("github.com/itsmewidii/fitriacookry/service/order")
	serviceMeter  = otel.Meter("github.com/itsmewidii/fitriacookry/service/order")
)

// EventOrderCreated names order creation events on the orders topic.
const EventOrderCreated = "order.created"

// Repository is the persistence the service needs for orders.
type Repository interface {
	Create(ctx context.Context, order *entity.Order) error
	GetByID(ctx context.Context, id int64, withRelations bool) (*entity.Order, error)
	Exists(ctx context.Context, id int64) (bool, error)
	Update(ctx context.Context, order *entity.Order) (int64, error)
	ForceDelete(ctx context.Context, id int64) error
	List(ctx context.Context, p repo.ListParams) ([]entity.Order, int, int, error)
	All(ctx context.Context) ([]entity.Order, error)
	CountByMonth(ctx context.Context, start, end time.Time) ([]repo.MonthCount, error)
	CountByDate(ctx context.Context, start, end time.Time) ([]repo.DateCount, error)
}

// Lookups reads the reference rows shown on order forms.
type Lookups interface {
	Uniques(ctx context.Context) ([]entity.Unique, error)
	Users(ctx context.Context) ([]entity.User, error)
	UniqueExists(ctx context.Context, id int64) (bool, error)
}

// Service encapsulates business logic around orders.
type Service struct {
	orders      Repository
	lookups     Lookups
	disk        *storage.Disk
	proofFolder string
	cache       cache.Store
	cacheTTL    time.Duration
	logger      *zap.Logger
	publisher   messaging.Client
	messaging   messagingConfig
	location    *time.Location
	now         func() time.Time
	created     metric.Int64Counter
	deleted     metric.Int64Counter
}

// messagingConfig contains messaging specific knobs we care about.
type messagingConfig struct {
	enabled bool
	topic   string
}

// Module provides the order service to Fx.
var Module = fx.Provide(NewService)

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository *repo.Repository
	Lookups    *lookup.Repository
	Disk       *storage.Disk
	Cache      cache.Store
	Config     config.Config
	Logger     *zap.Logger
	Publisher  messaging.Client
}

// NewService wires a new Service instance.
func NewService(p Params) (*Service, error) {
	return newService(p.Repository, p.Lookups, p.Disk, p.Cache, p.Publisher, p.Config, p.Logger)
}

func newService(orders Repository, lookups Lookups, disk *storage.Disk, store cache.Store, publisher messaging.Client, cfg config.Config, logger *zap.Logger) (*Service, error) {
	created, err := serviceMeter.Int64Counter("orders.created", metric.WithDescription("Orders stored from the admin"))
	if err != nil {
		return nil, err
	}
	deleted, err := serviceMeter.Int64Counter("orders.deleted", metric.WithDescription("Orders permanently deleted"))
	if err != nil {
		return nil, err
	}

	loc := cfg.App.Location
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		orders:      orders,
		lookups:     lookups,
		disk:        disk,
		proofFolder: cfg.Storage.ProofFolder,
		cache:       store,
		cacheTTL:    cfg.Cache.DefaultTTL,
		logger:      logger,
		publisher:   publisher,
		messaging: messagingConfig{
			enabled: cfg.Messaging.Enabled,
			topic:   cfg.Messaging.Kafka.OrdersTopic,
		},
		location: loc,
		now:      time.Now,
		created:  created,
		deleted:  deleted,
	}, nil
}

// Location is the time zone dates are presented in.
func (s *Service) Location() *time.Location {
	return s.location
}

// Page is one slice of the order table.
type Page struct {
	Orders   []entity.Order
	Total    int
	Filtered int
}

// List returns one page of the order table.
func (s *Service) List(ctx context.Context, p repo.ListParams) (Page, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.List")
	defer span.End()

	orders, total, filtered, err := s.orders.List(ctx, p)
	if err != nil {
		failSpan(span, err)
		return Page{}, errorbank.Internal("failed to list orders", errorbank.WithCause(err))
	}
	return Page{Orders: orders, Total: total, Filtered: filtered}, nil
}

// Stats counts orders per bucket over the calendar window of r around now.
func (s *Service) Stats(ctx context.Context, r Range) (Stats, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Stats", trace.WithAttributes(attribute.String("stats.range", string(r))))
	defer span.End()

	start, end := Window(r, s.now().In(s.location))
	stats := Stats{Labels: []string{}, Data: []int64{}}

	if r == RangeYear {
		rows, err := s.orders.CountByMonth(ctx, start.UTC(), end.UTC())
		if err != nil {
			failSpan(span, err)
			return Stats{}, errorbank.Internal("failed to load order stats", errorbank.WithCause(err))
		}
		for _, row := range rows {
			stats.Labels = append(stats.Labels, time.Month(row.Month).String())
			stats.Data = append(stats.Data, row.Total)
		}
		return stats, nil
	}

	rows, err := s.orders.CountByDate(ctx, start.UTC(), end.UTC())
	if err != nil {
		failSpan(span, err)
		return Stats{}, errorbank.Internal("failed to load order stats", errorbank.WithCause(err))
	}
	for _, row := range rows {
		stats.Labels = append(stats.Labels, dayLabel(row.Date))
		stats.Data = append(stats.Data, row.Total)
	}
	return stats, nil
}

// Uniques lists the unique codes offered on the create form.
func (s *Service) Uniques(ctx context.Context) ([]entity.Unique, error) {
	uniques, err := s.lookups.Uniques(ctx)
	if err != nil {
		return nil, errorbank.Internal("failed to load uniques", errorbank.WithCause(err))
	}
	return uniques, nil
}

// Users lists the accounts shown on detail and edit pages.
func (s *Service) Users(ctx context.Context) ([]entity.User, error) {
	users, err := s.lookups.Users(ctx)
	if err != nil {
		return nil, errorbank.Internal("failed to load users", errorbank.WithCause(err))
	}
	return users, nil
}

// Upload is a client supplied file.
type Upload struct {
	Name    string
	Content io.Reader
}

// CreateInput is the allow-list of fields a new order accepts.
type CreateInput struct {
	UniqueID      int64
	UserID        *int64
	Name          string
	NoWhatsapp    string
	Email         string
	Shipping      string
	ShippingCode  string
	ShippingPrice decimal.Decimal
	TotalQty      int64
	TotalPrice    decimal.Decimal
	Address       string
	Status        string
	Proof         *Upload
}

// Create stores the proof file, persists the order and announces it.
// A stored file is kept when the insert fails.
func (s *Service) Create(ctx context.Context, in CreateInput) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Create", trace.WithAttributes(attribute.Int64("order.unique_id", in.UniqueID)))
	defer span.End()

	ok, err := s.lookups.UniqueExists(ctx, in.UniqueID)
	if err != nil {
		failSpan(span, err)
		return nil, errorbank.Internal("failed to check unique", errorbank.WithCause(err))
	}
	if !ok {
		return nil, errorbank.Invalid("The given data was invalid.", map[string]string{
			"unique_id": "The selected unique id is invalid.",
		})
	}

	now := s.now().UTC()
	order := &entity.Order{
		UniqueID:      in.UniqueID,
		UserID:        in.UserID,
		Name:          in.Name,
		NoWhatsapp:    in.NoWhatsapp,
		Email:         in.Email,
		Shipping:      in.Shipping,
		ShippingCode:  in.ShippingCode,
		ShippingPrice: in.ShippingPrice,
		TotalQty:      in.TotalQty,
		TotalPrice:    in.TotalPrice,
		Address:       in.Address,
		Status:        in.Status,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if order.Status == "" {
		order.Status = entity.StatusPending
	}

	if in.Proof != nil {
		rel, err := s.disk.Put(s.proofFolder, in.Proof.Name, in.Proof.Content)
		if err != nil {
			failSpan(span, err)
			return nil, errorbank.Internal("failed to store proof of transfer", errorbank.WithCause(err))
		}
		order.ProofTransfer = &rel
	}

	if err := s.orders.Create(ctx, order); err != nil {
		failSpan(span, err)
		return nil, errorbank.Internal("failed to create order", errorbank.WithCause(err))
	}

	s.created.Add(ctx, 1)
	s.publishOrderCreated(ctx, order)
	return order, nil
}

// Get loads an order with its user and cart lines, consulting cache first.
func (s *Service) Get(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Get", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	if order, err := s.getFromCache(ctx, id); err == nil {
		return order, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("orders cache read failed", zap.Int64("id", id), zap.Error(err))
	}

	order, err := s.orders.GetByID(ctx, id, true)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errorbank.NotFound("order not found")
		}
		failSpan(span, err)
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}

	if err := s.storeInCache(ctx, order); err != nil {
		s.logger.Warn("orders cache write failed", zap.Int64("id", id), zap.Error(err))
	}
	return order, nil
}

// UpdateInput carries the columns an order update may change.
type UpdateInput struct {
	Name          string
	ShippingPrice decimal.Decimal
	ShippingCode  string
	Shipping      string
	NoWhatsapp    string
	Email         string
	TotalQty      int64
	TotalPrice    decimal.Decimal
	Address       string
	Status        string
}

// Update rewrites the editable columns of order id. The proof of transfer is
// left as stored. Zero affected rows is reported as not found.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) error {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Update", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order := &entity.Order{
		ID:            id,
		Name:          in.Name,
		ShippingPrice: in.ShippingPrice,
		ShippingCode:  in.ShippingCode,
		Shipping:      in.Shipping,
		NoWhatsapp:    in.NoWhatsapp,
		Email:         in.Email,
		TotalQty:      in.TotalQty,
		TotalPrice:    in.TotalPrice,
		Address:       in.Address,
		Status:        in.Status,
		UpdatedAt:     s.now().UTC(),
	}

	n, err := s.orders.Update(ctx, order)
	if err != nil {
		failSpan(span, err)
		return errorbank.Internal("failed to update order", errorbank.WithCause(err))
	}
	s.evict(ctx, id)
	if n == 0 {
		return errorbank.NotFound("order not found")
	}
	return nil
}

// Destroy removes the proof file, when there is one, and permanently deletes
// the order. A proof already gone from disk is only logged.
func (s *Service) Destroy(ctx context.Context, id int64) error {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Destroy", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	ok, err := s.orders.Exists(ctx, id)
	if err != nil {
		failSpan(span, err)
		return errorbank.Internal("failed to delete order", errorbank.WithCause(err))
	}
	if !ok {
		return errorbank.NotFound("order not found")
	}

	order, err := s.orders.GetByID(ctx, id, false)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return errorbank.NotFound("order not found")
		}
		failSpan(span, err)
		return errorbank.Internal("failed to delete order", errorbank.WithCause(err))
	}

	if order.HasProof() {
		if err := s.disk.Delete(*order.ProofTransfer); err != nil {
			if !errors.Is(err, storage.ErrFileNotFound) {
				failSpan(span, err)
				return errorbank.Internal("failed to delete proof of transfer", errorbank.WithCause(err))
			}
			s.logger.Warn("proof of transfer already missing",
				zap.Int64("id", id),
				zap.String("path", *order.ProofTransfer),
			)
		}
	}

	if err := s.orders.ForceDelete(ctx, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return errorbank.NotFound("order not found")
		}
		failSpan(span, err)
		return errorbank.Internal("failed to delete order", errorbank.WithCause(err))
	}

	s.evict(ctx, id)
	s.deleted.Add(ctx, 1)
	return nil
}

// Export writes every live order as an xlsx workbook to w.
func (s *Service) Export(ctx context.Context, w io.Writer) error {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Export")
	defer span.End()

	orders, err := s.orders.All(ctx)
	if err != nil {
		failSpan(span, err)
		return errorbank.Internal("failed to load orders", errorbank.WithCause(err))
	}
	span.SetAttributes(attribute.Int("export.rows", len(orders)))

	if err := export.WriteOrders(w, orders, s.location); err != nil {
		failSpan(span, err)
		return errorbank.Internal("failed to export orders", errorbank.WithCause(err))
	}
	return nil
}

func (s *Service) publishOrderCreated(ctx context.Context, order *entity.Order) {
	if !s.messaging.enabled || s.publisher == nil {
		return
	}
	event := OrderCreatedEvent{
		Event:      EventOrderCreated,
		ID:         order.ID,
		UniqueID:   order.UniqueID,
		Name:       order.Name,
		Status:     order.Status,
		TotalPrice: order.TotalPrice,
		CreatedAt:  order.CreatedAt,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("marshal order created", zap.Error(err))
		return
	}
	if err := s.publisher.Publish(ctx, s.messaging.topic, []byte(fmt.Sprintf("order-%d", order.ID)), payload); err != nil {
		s.logger.Error("publish order created", zap.Int64("id", order.ID), zap.Error(err))
	}
}

func (s *Service) cacheKey(id int64) string {
	return fmt.Sprintf("orders:%d", id)
}

func (s *Service) getFromCache(ctx context.Context, id int64) (*entity.Order, error) {
	if s.cache == nil {
		return nil, cache.ErrCacheMiss
	}
	bytes, err := s.cache.Get(ctx, s.cacheKey(id))
	if err != nil {
		return nil, err
	}
	var order entity.Order
	if err := json.Unmarshal(bytes, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Service) storeInCache(ctx context.Context, order *entity.Order) error {
	if s.cache == nil || order == nil {
		return nil
	}
	bytes, err := json.Marshal(order)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, s.cacheKey(order.ID), bytes, s.cacheTTL)
}

func (s *Service) evict(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, s.cacheKey(id)); err != nil {
		s.logger.Warn("orders cache evict failed", zap.Int64("id", id), zap.Error(err))
	}
}

func failSpan(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// OrderCreatedEvent is emitted when a new order is persisted.
type OrderCreatedEvent struct {
	Event      string          `json:"event"`
	ID         int64           `json:"id"`
	UniqueID   int64           `json:"unique_id"`
	Name       string          `json:"name"`
	Status     string          `json:"status"`
	TotalPrice decimal.Decimal `json:"total_price"`
	CreatedAt  time.Time       `json:"created_at"`
}
