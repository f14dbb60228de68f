package domain

// Detection is a single per-frame detector result. Detections are transient:
// they are pushed to clients and dropped, never persisted. ProductID is empty
// when the detected class has no catalog mapping.
type Detection struct {
	BBox        [4]int  `json:"bbox"`
	Confidence  float64 `json:"confidence"`
	ProductID   string  `json:"product_id,omitempty"`
	ProductName string  `json:"product_name,omitempty"`
}
