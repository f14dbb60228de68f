package domain

import "time"

// CartLine is one product's row in the cart. Quantity is always >= 1; a line
// decremented to zero is deleted, never kept.
type CartLine struct {
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	Category    string  `json:"category"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
}

// CartSummary is an immutable point-in-time copy of the cart. Items keep
// insertion order.
type CartSummary struct {
	Items       []CartLine `json:"items"`
	TotalItems  int        `json:"total_items"`
	UniqueItems int        `json:"unique_items"`
	LastUpdated *time.Time `json:"last_updated"`
}

// Subtotal sums price * quantity over all lines.
func (s CartSummary) Subtotal() float64 {
	var total float64
	for _, line := range s.Items {
		total += line.Price * float64(line.Quantity)
	}
	return total
}
