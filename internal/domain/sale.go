package domain

import "time"

// Sale is the settled outcome of a confirmed payment session. Created exactly
// once per session, immutable thereafter.
type Sale struct {
	ID        string     `json:"id"`
	PaymentID string     `json:"payment_id"`
	Items     []CartLine `json:"items"`
	Subtotal  float64    `json:"subtotal"`
	Tax       float64    `json:"tax"`
	Total     float64    `json:"total"`
	Timestamp time.Time  `json:"timestamp"`
}

// TopProduct is one row of the analytics top-sellers list.
type TopProduct struct {
	ProductID    string  `json:"product_id"`
	ProductName  string  `json:"product_name"`
	QuantitySold int     `json:"quantity_sold"`
	Revenue      float64 `json:"revenue"`
}

type Analytics struct {
	TotalSales    int          `json:"total_sales"`
	TodaySales    int          `json:"today_sales"`
	TodayRevenue  float64      `json:"today_revenue"`
	TotalRevenue  float64      `json:"total_revenue"`
	TopProducts   []TopProduct `json:"top_products"`
	LowStockCount int          `json:"low_stock_count"`
}
