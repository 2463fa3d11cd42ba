package rental

import (
	"time"

	"equiprental/model"
)

type Overdue struct {
	Hours int64
	Fee   int64
}

// CalculateOverdue bills every started hour past EndTime at the item's hourly
// price: one minute late is a full hour.
func CalculateOverdue(r *model.RentalRecord, item *model.ItemTypeInfo, now time.Time) (Overdue, error) {
	if r.EndTime.IsZero() || EffectiveStatus(r, now) != model.RentalOverDue {
		return Overdue{}, makeErr(ErrInvalidState)
	}
	elapsed := now.Sub(r.EndTime)
	if elapsed <= 0 {
		return Overdue{}, nil
	}
	hours := int64((elapsed + time.Hour - 1) / time.Hour)
	return Overdue{Hours: hours, Fee: hours * item.PricePerHour}, nil
}
