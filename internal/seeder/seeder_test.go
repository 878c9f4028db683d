package seeder

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/itsmewidii/fitriacookry/internal/database/dbtest"
	"github.com/itsmewidii/fitriacookry/internal/entity"
)

func TestOrdersSeedsOnce(t *testing.T) {
	ctx := context.Background()
	conns := dbtest.Open(t)
	s := New(conns, zap.NewNop())
	s.now = func() time.Time { return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC) }

	require.NoError(t, s.Orders(ctx))
	require.NoError(t, s.Orders(ctx))

	count := func(model any) int {
		n, err := conns.Reader.NewSelect().Model(model).Count(ctx)
		require.NoError(t, err)
		return n
	}
	assert.Equal(t, len(uniqueNames), count((*entity.Unique)(nil)))
	assert.Equal(t, len(products), count((*entity.Product)(nil)))
	assert.Equal(t, len(samples), count((*entity.Order)(nil)))
	assert.Equal(t, len(samples), count((*entity.OrderCart)(nil)))

	var orders []entity.Order
	require.NoError(t, conns.Reader.NewSelect().Model(&orders).Relation("OrderCarts.Cart").OrderExpr("o.id ASC").Scan(ctx))
	for _, o := range orders {
		require.Len(t, o.OrderCarts, 1)
		assert.Equal(t, o.TotalQty, o.OrderCarts[0].Cart.Qty)
		assert.True(t, o.TotalPrice.GreaterThan(o.ShippingPrice))
	}
}
