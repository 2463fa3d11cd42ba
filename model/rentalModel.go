// model/rental.go
package model

import "time"

type RentalStatus string

const (
	RentalRented   RentalStatus = "Rented"
	RentalOverDue  RentalStatus = "OverDue"
	RentalReturned RentalStatus = "Returned"
)

// RentalRecord is the audit trail of one item checkout. It is never deleted.
type RentalRecord struct {
	ID              string       `json:"id"`
	Status          RentalStatus `json:"status"`
	StartTime       time.Time    `json:"start_time"`
	EndTime         time.Time    `json:"end_time"`
	ReturnTime      *time.Time   `json:"return_time,omitempty"`
	RentalTimeHours int64        `json:"rental_time"`
	UserID          string       `json:"user_id"`
	RentalItemID    string       `json:"rental_item_id"`
	ItemTypeID      string       `json:"item_type_id"`
	RentalStationID string       `json:"rental_station_id"`
	ReturnStationID string       `json:"return_station_id,omitempty"`

	// Version is bumped on every committed write; a commit carrying a stale
	// version is rejected.
	Version int64 `json:"-"`
}
