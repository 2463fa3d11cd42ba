package rental

import (
	"context"
	"errors"
	"time"

	"equiprental/model"
	rrepo "equiprental/repository/rental"
	"equiprental/util/clock"
)

// errors used by controllers and the payment coordinator

type ErrCode string

const (
	ErrNotFound          ErrCode = "NOT_FOUND"
	ErrNotOwner          ErrCode = "NOT_OWNER"
	ErrInvalidState      ErrCode = "INVALID_STATE"
	ErrInvalidTransition ErrCode = "INVALID_TRANSITION"
)

type codedError struct{ code ErrCode }

func (e codedError) Error() string { return string(e.code) }
func (e codedError) Code() ErrCode { return e.code }
func makeErr(c ErrCode) error      { return codedError{code: c} }

// Code extracts error code
func Code(err error) ErrCode {
	var ce interface{ Code() ErrCode }
	if errors.As(err, &ce) {
		return ce.Code()
	}
	return ""
}

// EffectiveStatus is the status a record has at now. A Rented record past its
// due time is OverDue whether or not that has been persisted.
func EffectiveStatus(r *model.RentalRecord, now time.Time) model.RentalStatus {
	if r.Status == model.RentalRented && now.After(r.EndTime) {
		return model.RentalOverDue
	}
	return r.Status
}

// Renew applies Rented --renew(hours)--> Rented. r is left untouched on error.
func Renew(r *model.RentalRecord, hours int64, now time.Time) error {
	if hours < 0 {
		return makeErr(ErrInvalidTransition)
	}
	if EffectiveStatus(r, now) != model.RentalRented {
		return makeErr(ErrInvalidTransition)
	}
	r.EndTime = r.EndTime.Add(time.Duration(hours) * time.Hour)
	r.RentalTimeHours += hours
	return nil
}

// Settle applies OverDue --settle--> Returned. Payment coverage is checked by
// the caller. r is left untouched on error.
func Settle(r *model.RentalRecord, returnStationID string, now time.Time) error {
	if EffectiveStatus(r, now) != model.RentalOverDue {
		return makeErr(ErrInvalidTransition)
	}
	ret := now
	r.Status = model.RentalReturned
	r.ReturnTime = &ret
	if returnStationID != "" {
		r.ReturnStationID = returnStationID
	}
	return nil
}

type Repo interface {
	GetRental(ctx context.Context, id string) (*model.RentalRecord, error)
	ListPayments(ctx context.Context, rentalID string) ([]model.PaymentRecord, error)
}

type Detail struct {
	Rental   model.RentalRecord    `json:"rental"`
	Payments []model.PaymentRecord `json:"payments"`
}

type Service interface {
	// Get returns a rental with its effective status and its payments.
	Get(ctx context.Context, userID, rentalID string) (*Detail, error)
}

type service struct {
	r   Repo
	clk clock.Clock
}

func New(r Repo, clk clock.Clock) Service { return &service{r: r, clk: clk} }

func (s *service) Get(ctx context.Context, userID, rentalID string) (*Detail, error) {
	rec, err := s.r.GetRental(ctx, rentalID)
	if errors.Is(err, rrepo.ErrNotFound) {
		return nil, makeErr(ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if userID != "" && rec.UserID != userID {
		return nil, makeErr(ErrNotOwner)
	}
	rec.Status = EffectiveStatus(rec, s.clk.Now())

	payments, err := s.r.ListPayments(ctx, rentalID)
	if err != nil {
		return nil, err
	}
	return &Detail{Rental: *rec, Payments: payments}, nil
}
