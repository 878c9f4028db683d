package lookup

import (
	"context"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"

	"github.com/itsmewidii/fitriacookry/internal/database"
	"github.com/itsmewidii/fitriacookry/internal/entity"
)

var repoTracer = otel.Tracer("github.com/itsmewidii/fitriacookry/repository/lookup")

// Module provides the lookup repository to Fx.
var Module = fx.Provide(NewRepository)

// Repository reads the reference tables used by order forms.
type Repository struct {
	reader *bun.DB
}

// NewRepository wires a lookup repository on the read connection.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{reader: conns.Reader}
}

// Uniques lists every unique code, oldest first.
func (r *Repository) Uniques(ctx context.Context) ([]entity.Unique, error) {
	ctx, span := repoTracer.Start(ctx, "LookupRepository.Uniques")
	defer span.End()

	var rows []entity.Unique
	if err := r.reader.NewSelect().Model(&rows).OrderExpr("uq.id ASC").Scan(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select uniques failed")
		return nil, err
	}
	return rows, nil
}

// Users lists every storefront account ordered by name.
func (r *Repository) Users(ctx context.Context) ([]entity.User, error) {
	ctx, span := repoTracer.Start(ctx, "LookupRepository.Users")
	defer span.End()

	var rows []entity.User
	if err := r.reader.NewSelect().Model(&rows).OrderExpr("u.name ASC").OrderExpr("u.id ASC").Scan(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select users failed")
		return nil, err
	}
	return rows, nil
}

// UniqueExists reports whether id names a unique code.
func (r *Repository) UniqueExists(ctx context.Context, id int64) (bool, error) {
	ctx, span := repoTracer.Start(ctx, "LookupRepository.UniqueExists", trace.WithAttributes(attribute.Int64("unique.id", id)))
	defer span.End()

	ok, err := r.reader.NewSelect().Model((*entity.Unique)(nil)).Where("uq.id = ?", id).Exists(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "unique exists failed")
	}
	return ok, err
}
