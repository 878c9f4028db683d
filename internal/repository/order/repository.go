package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"

	"github.com/itsmewidii/fitriacookry/internal/database"
	"github.com/itsmewidii/fitriacookry/internal/entity"
)

var repoTracer = otel.Tracer("github.com/itsmewidii/fitriacookry/repository/order")

// Module provides the order repository to Fx.
var Module = fx.Provide(NewRepository)

// ErrNotFound is returned when an order is missing.
var ErrNotFound = errors.New("order not found")

// UpdatableColumns is the allow-list written by Update.
var UpdatableColumns = []string{
	"name",
	"shipping_price",
	"shipping_code",
	"shipping",
	"no_whatsapp",
	"email",
	"total_qty",
	"total_price",
	"address",
	"status",
	"updated_at",
}

// Repository encapsulates read/write access for orders.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

// ListParams narrows and pages the order listing.
type ListParams struct {
	Search string
	Offset int
	Limit  int
}

// MonthCount is the number of orders created in one calendar month.
type MonthCount struct {
	Month int   `bun:"month"`
	Total int64 `bun:"total"`
}

// DateCount is the number of orders created on one calendar date (YYYY-MM-DD).
type DateCount struct {
	Date  string `bun:"day"`
	Total int64  `bun:"total"`
}

// Create persists a new order using the write connection.
func (r *Repository) Create(ctx context.Context, order *entity.Order) error {
	if order == nil {
		return errors.New("nil order")
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Create", trace.WithAttributes(attribute.String("order.email", order.Email)))
	defer span.End()

	_, err := r.writer.NewInsert().Model(order).Exec(ctx)
	if err != nil {
		fail(span, err, "insert failed")
	}
	return err
}

// GetByID fetches an order by primary key, optionally loading the user and
// the cart -> product chain.
func (r *Repository) GetByID(ctx context.Context, id int64, withRelations bool) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.GetByID", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order := new(entity.Order)
	q := r.reader.NewSelect().Model(order).Where("o.id = ?", id)
	if withRelations {
		q = q.Relation("User").Relation("OrderCarts.Cart.Product")
	}
	err := q.Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		fail(span, err, "select failed")
		return nil, err
	}
	return order, nil
}

// Exists reports whether a live (not soft-deleted) order has the given id.
func (r *Repository) Exists(ctx context.Context, id int64) (bool, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Exists", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	ok, err := r.reader.NewSelect().Model((*entity.Order)(nil)).Where("o.id = ?", id).Exists(ctx)
	if err != nil {
		fail(span, err, "exists failed")
	}
	return ok, err
}

// Update writes the allow-listed columns of order and returns the number of
// affected rows. Other columns, proof_transfer included, are never touched.
func (r *Repository) Update(ctx context.Context, order *entity.Order) (int64, error) {
	if order == nil {
		return 0, errors.New("nil order")
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Update", trace.WithAttributes(attribute.Int64("order.id", order.ID)))
	defer span.End()

	res, err := r.writer.NewUpdate().
		Model(order).
		Column(UpdatableColumns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		fail(span, err, "update failed")
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		fail(span, err, "rows affected failed")
		return 0, err
	}
	return n, nil
}

// ForceDelete permanently removes the row, bypassing soft delete.
func (r *Repository) ForceDelete(ctx context.Context, id int64) error {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.ForceDelete", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	res, err := r.writer.NewDelete().
		Model((*entity.Order)(nil)).
		Where("id = ?", id).
		ForceDelete().
		Exec(ctx)
	if err != nil {
		fail(span, err, "delete failed")
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns one page of live orders, newest first, plus the unfiltered
// and filtered totals.
func (r *Repository) List(ctx context.Context, p ListParams) (orders []entity.Order, total, filtered int, err error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.List", trace.WithAttributes(attribute.String("order.search", p.Search)))
	defer span.End()

	total, err = r.reader.NewSelect().Model((*entity.Order)(nil)).Count(ctx)
	if err != nil {
		fail(span, err, "count failed")
		return nil, 0, 0, err
	}

	q := r.reader.NewSelect().Model(&orders).OrderExpr("o.created_at DESC").OrderExpr("o.id DESC")
	if p.Search != "" {
		like := "%" + p.Search + "%"
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("o.name LIKE ?", like).
				WhereOr("o.email LIKE ?", like).
				WhereOr("o.no_whatsapp LIKE ?", like).
				WhereOr("o.status LIKE ?", like)
		})
	}
	if p.Limit > 0 {
		q = q.Limit(p.Limit)
	}
	if p.Offset > 0 {
		q = q.Offset(p.Offset)
	}

	filtered, err = q.ScanAndCount(ctx)
	if err != nil {
		fail(span, err, "list failed")
		return nil, 0, 0, err
	}
	return orders, total, filtered, nil
}

// All returns every live order in creation order.
func (r *Repository) All(ctx context.Context) ([]entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.All")
	defer span.End()

	var orders []entity.Order
	if err := r.reader.NewSelect().Model(&orders).OrderExpr("o.created_at ASC").OrderExpr("o.id ASC").Scan(ctx); err != nil {
		fail(span, err, "select all failed")
		return nil, err
	}
	return orders, nil
}

// CountByMonth groups live orders created in [start, end] by calendar month.
// Months without orders are absent.
func (r *Repository) CountByMonth(ctx context.Context, start, end time.Time) ([]MonthCount, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.CountByMonth")
	defer span.End()

	var rows []MonthCount
	err := r.reader.NewSelect().
		Model((*entity.Order)(nil)).
		ColumnExpr(monthExpr(r.reader.Dialect().Name())+" AS month").
		ColumnExpr("COUNT(*) AS total").
		Where("o.created_at BETWEEN ? AND ?", start, end).
		GroupExpr("month").
		OrderExpr("month ASC").
		Scan(ctx, &rows)
	if err != nil {
		fail(span, err, "count by month failed")
		return nil, err
	}
	return rows, nil
}

// CountByDate groups live orders created in [start, end] by calendar date.
// Dates without orders are absent.
func (r *Repository) CountByDate(ctx context.Context, start, end time.Time) ([]DateCount, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.CountByDate")
	defer span.End()

	var rows []DateCount
	err := r.reader.NewSelect().
		Model((*entity.Order)(nil)).
		ColumnExpr(dateExpr(r.reader.Dialect().Name())+" AS day").
		ColumnExpr("COUNT(*) AS total").
		Where("o.created_at BETWEEN ? AND ?", start, end).
		GroupExpr("day").
		OrderExpr("day ASC").
		Scan(ctx, &rows)
	if err != nil {
		fail(span, err, "count by date failed")
		return nil, err
	}
	return rows, nil
}

func monthExpr(name dialect.Name) string {
	switch name {
	case dialect.PG:
		return "CAST(EXTRACT(MONTH FROM o.created_at) AS INTEGER)"
	case dialect.SQLite:
		return "CAST(strftime('%m', o.created_at) AS INTEGER)"
	default:
		return "MONTH(o.created_at)"
	}
}

func dateExpr(name dialect.Name) string {
	switch name {
	case dialect.PG:
		return "to_char(o.created_at, 'YYYY-MM-DD')"
	case dialect.SQLite:
		return "strftime('%Y-%m-%d', o.created_at)"
	default:
		return "DATE_FORMAT(o.created_at, '%Y-%m-%d')"
	}
}

func fail(span trace.Span, err error, msg string) {
	span.RecordError(err)
	span.SetStatus(codes.Error, fmt.Sprintf("%s: %v", msg, err))
}
