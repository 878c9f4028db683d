package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/itsmewidii/fitriacookry/internal/entity"
)

const (
	// OrdersFilename is the download name of the order workbook.
	OrdersFilename = "orders.xlsx"
	// ContentType is the media type of xlsx workbooks.
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	ordersSheet = "Orders"
)

// OrderHeaders is the first row of the order workbook.
var OrderHeaders = []string{
	"ID",
	"Unique ID",
	"Name",
	"No WhatsApp",
	"Email",
	"Shipping",
	"Shipping Code",
	"Shipping Price",
	"Total Qty",
	"Total Price",
	"Address",
	"Status",
	"Proof Transfer",
	"Created At",
}

// OrdersWorkbook lays out one header row and one row per order. Timestamps are
// rendered in loc.
func OrdersWorkbook(orders []entity.Order, loc *time.Location) (*excelize.File, error) {
	if loc == nil {
		loc = time.UTC
	}

	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), ordersSheet); err != nil {
		_ = f.Close()
		return nil, err
	}

	sw, err := f.NewStreamWriter(ordersSheet)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	header := make([]any, len(OrderHeaders))
	for i, h := range OrderHeaders {
		header[i] = h
	}
	if err := sw.SetRow("A1", header); err != nil {
		_ = f.Close()
		return nil, err
	}

	for i, o := range orders {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		if err := sw.SetRow(cell, orderRow(o, loc)); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("write order %d: %w", o.ID, err)
		}
	}

	if err := sw.Flush(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return f, nil
}

// WriteOrders streams the order workbook to w.
func WriteOrders(w io.Writer, orders []entity.Order, loc *time.Location) error {
	f, err := OrdersWorkbook(orders, loc)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.WriteTo(w)
	return err
}

func orderRow(o entity.Order, loc *time.Location) []any {
	proof := ""
	if o.HasProof() {
		proof = *o.ProofTransfer
	}
	shippingPrice, _ := o.ShippingPrice.Float64()
	totalPrice, _ := o.TotalPrice.Float64()

	return []any{
		o.ID,
		o.UniqueID,
		o.Name,
		o.NoWhatsapp,
		o.Email,
		o.Shipping,
		o.ShippingCode,
		shippingPrice,
		o.TotalQty,
		totalPrice,
		o.Address,
		o.Status,
		proof,
		o.CreatedAt.In(loc).Format("2006-01-02 15:04:05"),
	}
}
