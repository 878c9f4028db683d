package database

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/itsmewidii/fitriacookry/internal/entity"
)

// Models lists the application tables in dependency order.
func Models() []any {
	return []any{
		(*entity.Unique)(nil),
		(*entity.User)(nil),
		(*entity.Product)(nil),
		(*entity.Cart)(nil),
		(*entity.Order)(nil),
		(*entity.OrderCart)(nil),
	}
}

// CreateSchema creates every table that does not exist yet straight from the
// bun models. Used for dialects without hand-written migrations.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	for _, model := range Models() {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", model, err)
		}
	}
	return nil
}

// DropSchema drops the application tables in reverse dependency order.
func DropSchema(ctx context.Context, db bun.IDB) error {
	models := Models()
	for i := len(models) - 1; i >= 0; i-- {
		if _, err := db.NewDropTable().Model(models[i]).IfExists().Exec(ctx); err != nil {
			return fmt.Errorf("drop table for %T: %w", models[i], err)
		}
	}
	return nil
}
