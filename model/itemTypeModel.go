// model/itemType.go
package model

// ItemTypeInfo is owned by the station catalog and read-only here.
type ItemTypeInfo struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	PricePerHour int64  `json:"price_per_hour"`
}
