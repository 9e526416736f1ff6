package dto

// OrderRequest is the body accepted by order create and update. A zero or
// missing timestamp means "now".
type OrderRequest struct {
	CustomerID int64   `json:"customer_id"`
	ItemID     int64   `json:"item_id"`
	Notes      *string `json:"notes"`
	Timestamp  int64   `json:"timestamp"`
}

// OrderResponse represents an order as exposed via transport layers.
type OrderResponse struct {
	ID         int64   `json:"id"`
	CustomerID int64   `json:"customer_id"`
	ItemID     int64   `json:"item_id"`
	Notes      *string `json:"notes"`
	Timestamp  int64   `json:"timestamp"`
}
