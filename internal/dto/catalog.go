package dto

// CustomerRequest is the body accepted by customer create and update.
type CustomerRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// CustomerResponse represents a customer as exposed via transport layers.
type CustomerResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// ItemRequest is the body accepted by item create and update.
type ItemRequest struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// ItemResponse represents a catalog item.
type ItemResponse struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}
