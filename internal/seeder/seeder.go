package seeder

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/itsmewidii/fitriacookry/internal/database"
	"github.com/itsmewidii/fitriacookry/internal/entity"
)

// Module provides the Seeder to Fx.
var Module = fx.Provide(New)

// Seeder performs database seeding for local/dev setups.
type Seeder struct {
	db     *bun.DB
	logger *zap.Logger
	now    func() time.Time
}

// New constructs a Seeder backed by the primary database connection.
func New(conns *database.Connections, logger *zap.Logger) *Seeder {
	return &Seeder{db: conns.Writer, logger: logger, now: time.Now}
}

type sampleOrder struct {
	name    string
	phone   string
	status  string
	product int
	qty     int64
	ago     time.Duration
}

var (
	uniqueNames = []string{"FC-001", "FC-002", "FC-003"}
	products    = []struct {
		name  string
		price string
	}{
		{"Nastar Premium", "85000"},
		{"Kastengel Keju", "90000"},
		{"Putri Salju", "75000"},
	}
	samples = []sampleOrder{
		{"Ani Lestari", "081234567801", "pending", 0, 2, 2 * time.Hour},
		{"Budi Santoso", "081234567802", "paid", 1, 1, 26 * time.Hour},
		{"Citra Dewi", "081234567803", "shipped", 2, 3, 4 * 24 * time.Hour},
		{"Dimas Pratama", "081234567804", "done", 0, 1, 12 * 24 * time.Hour},
		{"Eka Putri", "081234567805", "done", 1, 4, 40 * 24 * time.Hour},
		{"Fajar Nugroho", "081234567806", "done", 2, 2, 95 * 24 * time.Hour},
	}
)

// Orders seeds lookups, a small catalogue and sample orders spread over the
// last months. It does nothing when uniques already exist.
func (s *Seeder) Orders(ctx context.Context) error {
	exists, err := s.db.NewSelect().Model((*entity.Unique)(nil)).Exists(ctx)
	if err != nil {
		return err
	}
	if exists {
		s.logger.Info("seed skipped, data present")
		return nil
	}

	now := s.now().UTC()
	err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		uniques := make([]entity.Unique, len(uniqueNames))
		for i, name := range uniqueNames {
			uniques[i] = entity.Unique{Name: name, CreatedAt: now}
		}
		if _, err := tx.NewInsert().Model(&uniques).Exec(ctx); err != nil {
			return fmt.Errorf("seed uniques: %w", err)
		}

		users := []entity.User{
			{Name: "Budi Santoso", Email: "budi@example.com", CreatedAt: now},
			{Name: "Citra Dewi", Email: "citra@example.com", CreatedAt: now},
		}
		if _, err := tx.NewInsert().Model(&users).Exec(ctx); err != nil {
			return fmt.Errorf("seed users: %w", err)
		}

		catalogue := make([]entity.Product, len(products))
		for i, p := range products {
			catalogue[i] = entity.Product{Name: p.name, Price: decimal.RequireFromString(p.price)}
		}
		if _, err := tx.NewInsert().Model(&catalogue).Exec(ctx); err != nil {
			return fmt.Errorf("seed products: %w", err)
		}

		for i, sample := range samples {
			product := catalogue[sample.product]
			var userID *int64
			if i%3 != 0 {
				userID = &users[i%len(users)].ID
			}

			cart := &entity.Cart{UserID: userID, ProductID: product.ID, Qty: sample.qty, Price: product.Price}
			if _, err := tx.NewInsert().Model(cart).Exec(ctx); err != nil {
				return fmt.Errorf("seed cart: %w", err)
			}

			shipping := decimal.NewFromInt(15000)
			created := now.Add(-sample.ago)
			order := &entity.Order{
				UniqueID:      uniques[i%len(uniques)].ID,
				UserID:        userID,
				Name:          sample.name,
				NoWhatsapp:    sample.phone,
				Email:         fmt.Sprintf("customer%d@example.com", i+1),
				Shipping:      "JNE",
				ShippingCode:  "REG",
				ShippingPrice: shipping,
				TotalQty:      sample.qty,
				TotalPrice:    cart.Subtotal().Add(shipping),
				Address:       fmt.Sprintf("Jl. Melati No. %d, Bandung", i+1),
				Status:        sample.status,
				CreatedAt:     created,
				UpdatedAt:     created,
			}
			if _, err := tx.NewInsert().Model(order).Exec(ctx); err != nil {
				return fmt.Errorf("seed order: %w", err)
			}
			if _, err := tx.NewInsert().Model(&entity.OrderCart{OrderID: order.ID, CartID: cart.ID}).Exec(ctx); err != nil {
				return fmt.Errorf("seed order cart: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("seeded orders", zap.Int("count", len(samples)))
	return nil
}
