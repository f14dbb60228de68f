package domain

// Product is a catalog entry. Stock is the on-hand count; MinStock is the
// threshold below which the product counts as low-stock in analytics.
type Product struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Category  string  `json:"category"`
	Price     float64 `json:"price"`
	Stock     int     `json:"stock"`
	MinStock  int     `json:"min_stock"`
	YoloClass string  `json:"yolo_class,omitempty"`
}
