package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// StatusPending is assigned to orders created without an explicit status.
const StatusPending = "pending"

// Order represents a purchase order administered from the back office.
type Order struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	ID            int64           `bun:",pk,autoincrement" json:"id"`
	UniqueID      int64           `bun:"unique_id,notnull" json:"unique_id"`
	UserID        *int64          `bun:"user_id" json:"user_id,omitempty"`
	Name          string          `bun:"name,notnull" json:"name"`
	NoWhatsapp    string          `bun:"no_whatsapp,notnull" json:"no_whatsapp"`
	Email         string          `bun:"email,notnull" json:"email"`
	Shipping      string          `bun:"shipping" json:"shipping"`
	ShippingCode  string          `bun:"shipping_code" json:"shipping_code"`
	ShippingPrice decimal.Decimal `bun:"shipping_price,type:numeric(14,2),notnull,default:0" json:"shipping_price"`
	TotalQty      int64           `bun:"total_qty,notnull" json:"total_qty"`
	TotalPrice    decimal.Decimal `bun:"total_price,type:numeric(14,2),notnull" json:"total_price"`
	Address       string          `bun:"address,notnull" json:"address"`
	Status        string          `bun:"status,notnull" json:"status"`
	ProofTransfer *string         `bun:"proof_transfer" json:"proof_transfer,omitempty"`
	CreatedAt     time.Time       `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time       `bun:"updated_at,nullzero" json:"updated_at"`
	DeletedAt     time.Time       `bun:"deleted_at,soft_delete,nullzero" json:"-"`

	User       *User        `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	OrderCarts []*OrderCart `bun:"rel:has-many,join:id=order_id" json:"order_carts,omitempty"`
}

// HasProof reports whether a proof-of-transfer file is attached.
func (o *Order) HasProof() bool {
	return o != nil && o.ProofTransfer != nil && *o.ProofTransfer != ""
}

// OrderCart links an order to the cart lines it was checked out from.
type OrderCart struct {
	bun.BaseModel `bun:"table:order_carts,alias:oc"`

	ID      int64 `bun:",pk,autoincrement" json:"id"`
	OrderID int64 `bun:"order_id,notnull" json:"order_id"`
	CartID  int64 `bun:"cart_id,notnull" json:"cart_id"`

	Cart *Cart `bun:"rel:belongs-to,join:cart_id=id" json:"cart,omitempty"`
}

// Cart is a single product line a customer put in their basket.
type Cart struct {
	bun.BaseModel `bun:"table:carts,alias:c"`

	ID        int64           `bun:",pk,autoincrement" json:"id"`
	UserID    *int64          `bun:"user_id" json:"user_id,omitempty"`
	ProductID int64           `bun:"product_id,notnull" json:"product_id"`
	Qty       int64           `bun:"qty,notnull" json:"qty"`
	Price     decimal.Decimal `bun:"price,type:numeric(14,2),notnull" json:"price"`

	Product *Product `bun:"rel:belongs-to,join:product_id=id" json:"product,omitempty"`
}

// Subtotal is the line total of the cart row.
func (c *Cart) Subtotal() decimal.Decimal {
	return c.Price.Mul(decimal.NewFromInt(c.Qty))
}

// Product is a sellable catalogue item.
type Product struct {
	bun.BaseModel `bun:"table:products,alias:p"`

	ID    int64           `bun:",pk,autoincrement" json:"id"`
	Name  string          `bun:"name,notnull" json:"name"`
	Price decimal.Decimal `bun:"price,type:numeric(14,2),notnull" json:"price"`
}

// CustomerName is the linked user's name, empty when no user is attached.
func (o *Order) CustomerName() string {
	if o == nil || o.User == nil || o.User.ID == 0 {
		return ""
	}
	return o.User.Name
}
