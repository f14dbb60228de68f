package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker/v2"

	"github.com/TheKaito2/Hybrid-complete/internal/domain"
)

const Topic = "sale-completed"

// eventItem is the wire shape of one sold line. Prices travel as
// "unit_price" to match downstream order consumers.
type eventItem struct {
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
}

// SaleCompletedEvent is published once per settled sale, keyed by payment id
// for per-payment ordering.
type SaleCompletedEvent struct {
	SaleID      string      `json:"sale_id"`
	PaymentID   string      `json:"payment_id"`
	Items       []eventItem `json:"items"`
	Subtotal    float64     `json:"subtotal"`
	Tax         float64     `json:"tax"`
	TotalAmount float64     `json:"total_amount"`
	CompletedAt time.Time   `json:"completed_at"`
}

// KafkaWriter is the slice of kafka.Writer the publisher uses.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// SalePublisher pushes settled sales to the broker. Writes go through a
// circuit breaker so a dead broker fails fast instead of stalling payment
// confirmation; the sqlite sale record is the source of truth either way.
type SalePublisher struct {
	writer  KafkaWriter
	breaker *gobreaker.CircuitBreaker[struct{}]
}

func NewSalePublisher(brokers ...string) *SalePublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  Topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return newSalePublisher(w)
}

func newSalePublisher(w KafkaWriter) *SalePublisher {
	breaker := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:    "sale-publisher",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("circuit breaker %s: %s -> %s", name, from, to)
		},
	})
	return &SalePublisher{writer: w, breaker: breaker}
}

func (p *SalePublisher) PublishSale(ctx context.Context, sale *domain.Sale) error {
	items := make([]eventItem, len(sale.Items))
	for i, line := range sale.Items {
		items[i] = eventItem{
			ProductID:   line.ProductID,
			ProductName: line.ProductName,
			Quantity:    line.Quantity,
			UnitPrice:   line.Price,
		}
	}

	payload, err := json.Marshal(SaleCompletedEvent{
		SaleID:      sale.ID,
		PaymentID:   sale.PaymentID,
		Items:       items,
		Subtotal:    sale.Subtotal,
		Tax:         sale.Tax,
		TotalAmount: sale.Total,
		CompletedAt: sale.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal sale event: %w", err)
	}

	_, err = p.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, p.writer.WriteMessages(ctx, kafka.Message{
			Key:   []byte(sale.PaymentID),
			Value: payload,
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte("sale_completed")},
			},
		})
	})
	return err
}

func (p *SalePublisher) Close() {
	if err := p.writer.Close(); err != nil {
		log.Printf("error closing kafka writer: %v", err)
	}
}
