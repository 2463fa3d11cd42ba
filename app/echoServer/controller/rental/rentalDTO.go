package rental

import (
	"time"

	"equiprental/model"
)

type PaymentResp struct {
	ID          string            `json:"id"`
	Type        model.PaymentType `json:"type"`
	TotalAmount int64             `json:"totalAmount"`
	PaymentDate time.Time         `json:"paymentDate"`
	OrderID     string            `json:"orderId"`
}

type RentalResp struct {
	ID              string             `json:"id"`
	Status          model.RentalStatus `json:"status"`
	StartTime       time.Time          `json:"startTime"`
	EndTime         time.Time          `json:"endTime"`
	ReturnTime      *time.Time         `json:"returnTime,omitempty"`
	RentalTime      int64              `json:"rentalTime"`
	RentalItemID    string             `json:"rentalItemId"`
	ItemTypeID      string             `json:"itemTypeId"`
	RentalStationID string             `json:"rentalStationId"`
	ReturnStationID string             `json:"returnStationId,omitempty"`
	Payments        []PaymentResp      `json:"payments"`
}
