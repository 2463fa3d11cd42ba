package payment

import "time"

type PaymentsBody struct {
	OrderID    string `json:"orderId" validate:"required"`
	PaymentKey string `json:"paymentKey" validate:"required"`
	Amount     int64  `json:"amount" validate:"required,gt=0"`
}

type RenewalRentalsBody struct {
	RentalHistoryToken string `json:"rentalHistoryToken" validate:"required"`
	RenewalTime        int64  `json:"renewalTime" validate:"required,gt=0"`
}

type ApproveRenewalReq struct {
	Payments PaymentsBody       `json:"payments"`
	Rentals  RenewalRentalsBody `json:"rentals"`
}

type ApproveRenewalResp struct {
	PaymentID  string    `json:"paymentId"`
	EndTime    time.Time `json:"endTime"`
	RentalTime int64     `json:"rentalTime"`
}

type InitializeOverdueReq struct {
	RentalItemToken string `json:"rentalItemToken" validate:"required"`
}

type InitializeOverdueResp struct {
	APIKey          string    `json:"apiKey"`
	OrderID         string    `json:"orderId"`
	OrderName       string    `json:"orderName"`
	ExpectedEndTime time.Time `json:"expectedEndTime"`
	OverdueTime     string    `json:"overdueTime"`
	Currency        string    `json:"currency"`
	Amount          int64     `json:"amount"`
}

type SettlementRentalsBody struct {
	RentalHistoryToken string `json:"rentalHistoryToken" validate:"required"`
	ReturnStationToken string `json:"returnStationToken"`
}

type ApproveOverdueReq struct {
	Payments PaymentsBody          `json:"payments"`
	Rentals  SettlementRentalsBody `json:"rentals"`
}

type ApproveOverdueResp struct {
	PaymentID  string    `json:"paymentId"`
	ReturnTime time.Time `json:"returnTime"`
	Amount     int64     `json:"amount"`
}
