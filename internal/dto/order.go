package dto

import "time"

// OrderRow is one line of the order table.
type OrderRow struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	NoWhatsapp string    `json:"no_whatsapp"`
	Email      string    `json:"email"`
	TotalQty   int64     `json:"total_qty"`
	TotalPrice string    `json:"total_price"`
	Status     string    `json:"status"`
	CreatedAt  string    `json:"created_at"`
	ProofURL   string    `json:"proof_url,omitempty"`
	ShowURL    string    `json:"show_url"`
	EditURL    string    `json:"edit_url"`
	DeleteURL  string    `json:"delete_url"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// DataTable is the server-side processing reply expected by DataTables.
type DataTable[T any] struct {
	Draw            int    `json:"draw"`
	RecordsTotal    int    `json:"recordsTotal"`
	RecordsFiltered int    `json:"recordsFiltered"`
	Data            []T    `json:"data"`
	Error           string `json:"error,omitempty"`
}

// ChatMessageRequest is the payload accepted when a user sends a chat line.
type ChatMessageRequest struct {
	SenderID   int64  `json:"sender_id" validate:"required,gt=0"`
	ReceiverID int64  `json:"receiver_id" validate:"required,gt=0"`
	Body       string `json:"body" validate:"required,max=2000"`
}
