// model/payment.go
package model

import "time"

type PaymentType string

const (
	PaymentRental  PaymentType = "rental"
	PaymentRenewal PaymentType = "renewal"
	PaymentOverdue PaymentType = "overdue"
)

// PaymentRecord is append-only; OrderID is unique across all records.
type PaymentRecord struct {
	ID              string      `json:"id"`
	Type            PaymentType `json:"type"`
	TotalAmount     int64       `json:"total_amount"`
	PaymentDate     time.Time   `json:"payment_date"`
	OrderID         string      `json:"order_id"`
	PaymentKey      string      `json:"payment_key"`
	RentalHistoryID string      `json:"rental_history_id"`
}
