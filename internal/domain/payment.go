package domain

import "time"

type SessionStatus string

const (
	SessionStatusPending   SessionStatus = "pending"
	SessionStatusConfirmed SessionStatus = "confirmed"
	SessionStatusCancelled SessionStatus = "cancelled"
	SessionStatusExpired   SessionStatus = "expired"
)

func (s SessionStatus) IsTerminal() bool {
	return s != SessionStatusPending
}

func (s SessionStatus) String() string {
	return string(s)
}

// PaymentSession bridges a cart snapshot to a completed sale. Items is a copy
// taken at creation time; later cart mutations never touch it.
type PaymentSession struct {
	ID        string        `json:"payment_id"`
	Items     []CartLine    `json:"items"`
	Subtotal  float64       `json:"subtotal"`
	Tax       float64       `json:"tax"`
	Total     float64       `json:"total"`
	QRCode    string        `json:"qr_code"`
	Status    SessionStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	ExpiresAt time.Time     `json:"expires_at"`
}

func (p *PaymentSession) IsExpired() bool {
	return time.Now().After(p.ExpiresAt)
}
