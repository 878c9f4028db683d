package order

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/itsmewidii/fitriacookry/internal/database/dbtest"
	"github.com/itsmewidii/fitriacookry/internal/entity"
)

type RepositoryTestSuite struct {
	suite.Suite
	ctx    context.Context
	repo   *Repository
	unique *entity.Unique
}

func TestRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(RepositoryTestSuite))
}

func (s *RepositoryTestSuite) SetupTest() {
	s.ctx = context.Background()
	conns := dbtest.Open(s.T())
	s.repo = NewRepository(conns)

	s.unique = &entity.Unique{Name: "FC-001", CreatedAt: time.Now().UTC()}
	_, err := conns.Writer.NewInsert().Model(s.unique).Exec(s.ctx)
	s.Require().NoError(err)
}

func (s *RepositoryTestSuite) newOrder(name string, createdAt time.Time) *entity.Order {
	proof := "proofs/abc_" + name + ".png"
	o := &entity.Order{
		UniqueID:      s.unique.ID,
		Name:          name,
		NoWhatsapp:    "081234567890",
		Email:         name + "@example.com",
		Shipping:      "JNE",
		ShippingCode:  "REG",
		ShippingPrice: decimal.RequireFromString("15000"),
		TotalQty:      2,
		TotalPrice:    decimal.RequireFromString("120000.50"),
		Address:       "Jl. Melati 1",
		Status:        entity.StatusPending,
		ProofTransfer: &proof,
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}
	s.Require().NoError(s.repo.Create(s.ctx, o))
	s.Require().NotZero(o.ID)
	return o
}

func (s *RepositoryTestSuite) TestCreateAndGet() {
	created := s.newOrder("ani", time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC))

	got, err := s.repo.GetByID(s.ctx, created.ID, false)
	s.Require().NoError(err)
	s.Equal("ani", got.Name)
	s.Equal(s.unique.ID, got.UniqueID)
	s.True(got.TotalPrice.Equal(decimal.RequireFromString("120000.5")))
	s.Equal(int64(2), got.TotalQty)
	s.Require().True(got.HasProof())
	s.Equal("proofs/abc_ani.png", *got.ProofTransfer)
}

func (s *RepositoryTestSuite) TestGetMissing() {
	_, err := s.repo.GetByID(s.ctx, 999, true)
	s.ErrorIs(err, ErrNotFound)

	ok, err := s.repo.Exists(s.ctx, 999)
	s.Require().NoError(err)
	s.False(ok)
}

func (s *RepositoryTestSuite) TestGetLoadsCartChain() {
	db := s.repo.writer
	user := &entity.User{Name: "Budi", Email: "budi@example.com", CreatedAt: time.Now().UTC()}
	_, err := db.NewInsert().Model(user).Exec(s.ctx)
	s.Require().NoError(err)
	product := &entity.Product{Name: "Nastar", Price: decimal.RequireFromString("60000")}
	_, err = db.NewInsert().Model(product).Exec(s.ctx)
	s.Require().NoError(err)
	cart := &entity.Cart{UserID: &user.ID, ProductID: product.ID, Qty: 2, Price: product.Price}
	_, err = db.NewInsert().Model(cart).Exec(s.ctx)
	s.Require().NoError(err)

	order := s.newOrder("budi", time.Now().UTC())
	order.UserID = &user.ID
	_, err = db.NewUpdate().Model(order).Column("user_id").WherePK().Exec(s.ctx)
	s.Require().NoError(err)
	_, err = db.NewInsert().Model(&entity.OrderCart{OrderID: order.ID, CartID: cart.ID}).Exec(s.ctx)
	s.Require().NoError(err)

	got, err := s.repo.GetByID(s.ctx, order.ID, true)
	s.Require().NoError(err)
	s.Equal("Budi", got.CustomerName())
	s.Require().Len(got.OrderCarts, 1)
	s.Require().NotNil(got.OrderCarts[0].Cart)
	s.Require().NotNil(got.OrderCarts[0].Cart.Product)
	s.Equal("Nastar", got.OrderCarts[0].Cart.Product.Name)
	s.True(got.OrderCarts[0].Cart.Subtotal().Equal(decimal.RequireFromString("120000")))
}

func (s *RepositoryTestSuite) TestUpdateWritesOnlyAllowListedColumns() {
	original := s.newOrder("citra", time.Date(2025, 1, 2, 8, 0, 0, 0, time.UTC))

	changedProof := "proofs/other.pdf"
	patch := &entity.Order{
		ID:            original.ID,
		UniqueID:      original.UniqueID + 100,
		Name:          "Citra Dewi",
		NoWhatsapp:    "0899",
		Email:         "citra@example.org",
		Shipping:      "SiCepat",
		ShippingCode:  "BEST",
		ShippingPrice: decimal.RequireFromString("9000"),
		TotalQty:      5,
		TotalPrice:    decimal.RequireFromString("250000"),
		Address:       "Jl. Kenanga 2",
		Status:        "paid",
		ProofTransfer: &changedProof,
		CreatedAt:     time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt:     time.Date(2025, 1, 3, 8, 0, 0, 0, time.UTC),
	}

	n, err := s.repo.Update(s.ctx, patch)
	s.Require().NoError(err)
	s.Equal(int64(1), n)

	got, err := s.repo.GetByID(s.ctx, original.ID, false)
	s.Require().NoError(err)
	s.Equal("Citra Dewi", got.Name)
	s.Equal("paid", got.Status)
	s.Equal(int64(5), got.TotalQty)
	s.True(got.ShippingPrice.Equal(decimal.RequireFromString("9000")))
	s.Equal(original.UniqueID, got.UniqueID)
	s.Equal("proofs/abc_citra.png", *got.ProofTransfer)
	s.True(got.CreatedAt.Equal(original.CreatedAt))
}

func (s *RepositoryTestSuite) TestUpdateMissingAffectsNothing() {
	n, err := s.repo.Update(s.ctx, &entity.Order{ID: 404, Name: "ghost", Status: "paid"})
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *RepositoryTestSuite) TestForceDelete() {
	keep := s.newOrder("keep", time.Now().UTC())
	gone := s.newOrder("gone", time.Now().UTC())

	s.Require().NoError(s.repo.ForceDelete(s.ctx, gone.ID))
	s.ErrorIs(s.repo.ForceDelete(s.ctx, gone.ID), ErrNotFound)

	remaining, err := s.repo.writer.NewSelect().Model((*entity.Order)(nil)).WhereAllWithDeleted().Count(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, remaining)

	ok, err := s.repo.Exists(s.ctx, keep.ID)
	s.Require().NoError(err)
	s.True(ok)
}

func (s *RepositoryTestSuite) TestListSearchAndPaging() {
	base := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	s.newOrder("dina", base)
	s.newOrder("eka", base.Add(time.Hour))
	s.newOrder("dimas", base.Add(2*time.Hour))

	orders, total, filtered, err := s.repo.List(s.ctx, ListParams{Limit: 2})
	s.Require().NoError(err)
	s.Equal(3, total)
	s.Equal(3, filtered)
	s.Require().Len(orders, 2)
	s.Equal("dimas", orders[0].Name)
	s.Equal("eka", orders[1].Name)

	orders, total, filtered, err = s.repo.List(s.ctx, ListParams{Search: "di", Limit: 10})
	s.Require().NoError(err)
	s.Equal(3, total)
	s.Equal(2, filtered)
	s.Len(orders, 2)

	all, err := s.repo.All(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(all, 3)
	s.Equal("dina", all[0].Name)
}

func (s *RepositoryTestSuite) TestCountByMonth() {
	s.newOrder("jan1", time.Date(2025, 1, 5, 10, 0, 0, 0, time.UTC))
	s.newOrder("jan2", time.Date(2025, 1, 20, 10, 0, 0, 0, time.UTC))
	s.newOrder("mar1", time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC))
	s.newOrder("prev", time.Date(2024, 12, 31, 10, 0, 0, 0, time.UTC))

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 12, 31, 23, 59, 59, 0, time.UTC)
	rows, err := s.repo.CountByMonth(s.ctx, start, end)
	s.Require().NoError(err)
	s.Equal([]MonthCount{{Month: 1, Total: 2}, {Month: 3, Total: 1}}, rows)
}

func (s *RepositoryTestSuite) TestCountByDate() {
	s.newOrder("a", time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC))
	s.newOrder("b", time.Date(2025, 6, 2, 17, 0, 0, 0, time.UTC))
	s.newOrder("c", time.Date(2025, 6, 4, 9, 0, 0, 0, time.UTC))
	s.newOrder("outside", time.Date(2025, 6, 9, 9, 0, 0, 0, time.UTC))

	start := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 6, 8, 23, 59, 59, 0, time.UTC)
	rows, err := s.repo.CountByDate(s.ctx, start, end)
	s.Require().NoError(err)
	s.Equal([]DateCount{{Date: "2025-06-02", Total: 2}, {Date: "2025-06-04", Total: 1}}, rows)
}
