package paymentsvc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"equiprental/model"
	gatewayrepo "equiprental/repository/gateway"
	quoterepo "equiprental/repository/quote"
	rrepo "equiprental/repository/rental"
	rentalsvc "equiprental/service/rental"
	"equiprental/util/clock"

	"github.com/google/uuid"
)

const Currency = "KRW"

type Repo interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx rrepo.Tx) error) error
	GetRental(ctx context.Context, id string) (*model.RentalRecord, error)
	PaymentByOrderID(ctx context.Context, orderID string) (*model.PaymentRecord, error)
	FindLatestOverdueByItem(ctx context.Context, itemID string, now time.Time) (*model.RentalRecord, error)
	ItemType(ctx context.Context, itemTypeID string) (*model.ItemTypeInfo, error)
}

type Options struct {
	// GatewayKey is the client key handed to the payment widget.
	GatewayKey     string
	GatewayTimeout time.Duration
	StoreTimeout   time.Duration
	CommitRetries  int
	RetryBackoff   time.Duration
	QuoteTTL       time.Duration
}

func (o Options) withDefaults() Options {
	if o.GatewayTimeout <= 0 {
		o.GatewayTimeout = 10 * time.Second
	}
	if o.StoreTimeout <= 0 {
		o.StoreTimeout = 5 * time.Second
	}
	if o.CommitRetries < 0 {
		o.CommitRetries = 0
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 20 * time.Millisecond
	}
	if o.QuoteTTL <= 0 {
		o.QuoteTTL = 15 * time.Minute
	}
	return o
}

// dto

type RenewalReq struct {
	UserID          string
	OrderID         string
	PaymentKey      string
	Amount          int64
	RentalHistoryID string
	RenewalHours    int64
}

type RenewalResult struct {
	PaymentID       string
	EndTime         time.Time
	RentalTimeHours int64
	Replayed        bool
}

type OverdueQuote struct {
	APIKey          string
	OrderID         string
	OrderName       string
	ExpectedEndTime time.Time
	OverdueHours    int64
	OverdueTime     string
	Currency        string
	Amount          int64
}

type SettlementReq struct {
	UserID          string
	OrderID         string
	PaymentKey      string
	Amount          int64
	RentalHistoryID string
	ReturnStationID string
}

type SettlementResult struct {
	PaymentID  string
	ReturnTime time.Time
	Amount     int64
	Replayed   bool
}

type Service interface {
	// ApproveRenewal charges the renewal through the gateway and extends the
	// rental in the same commit that records the payment.
	ApproveRenewal(ctx context.Context, req RenewalReq) (*RenewalResult, error)

	// InitializeOverdueSettlement quotes the overdue fee for the latest
	// overdue rental of an item. It never mutates a rental.
	InitializeOverdueSettlement(ctx context.Context, rentalItemID string) (*OverdueQuote, error)

	// ApproveOverdueSettlement charges the overdue fee and returns the rental.
	ApproveOverdueSettlement(ctx context.Context, req SettlementReq) (*SettlementResult, error)
}

// ----- Service implementation -----

type service struct {
	r      Repo
	gw     gatewayrepo.Repo
	quotes quoterepo.Repo
	clk    clock.Clock
	log    *slog.Logger
	opt    Options
}

func New(r Repo, gw gatewayrepo.Repo, quotes quoterepo.Repo, clk clock.Clock, log *slog.Logger, opt Options) Service {
	return &service{r: r, gw: gw, quotes: quotes, clk: clk, log: log, opt: opt.withDefaults()}
}

func (s *service) ApproveRenewal(ctx context.Context, req RenewalReq) (*RenewalResult, error) {
	switch {
	case req.OrderID == "", req.PaymentKey == "", req.RentalHistoryID == "":
		return nil, invalid("orderId, paymentKey and rentalHistoryId are required")
	case req.Amount <= 0:
		return nil, invalid("amount must be positive")
	case req.RenewalHours <= 0:
		return nil, invalid("renewalTime must be positive")
	}
	log := s.log.With("op", "renewal", "order_id", req.OrderID, "rental_id", req.RentalHistoryID)

	if out, err := s.renewalReplay(ctx, s.r, req); out != nil || err != nil {
		return out, err
	}

	// Validate against a snapshot first so a doomed renewal never charges
	// the user. The decisive check is repeated inside the transaction.
	rec, err := s.loadOwned(ctx, req.UserID, req.RentalHistoryID)
	if err != nil {
		return nil, err
	}
	probe := *rec
	if err := rentalsvc.Renew(&probe, req.RenewalHours, s.clk.Now()); err != nil {
		return nil, fromRental(err)
	}

	approved, err := s.approve(ctx, log, req.PaymentKey, req.OrderID, req.Amount)
	if err != nil {
		return nil, err
	}

	var out RenewalResult
	err = s.commit(ctx, func(ctx context.Context, tx rrepo.Tx) error {
		if replay, err := s.renewalReplay(ctx, tx, req); replay != nil || err != nil {
			if replay != nil {
				out = *replay
			}
			return err
		}

		r, err := tx.GetRental(ctx, req.RentalHistoryID)
		if err != nil {
			return notFound(err)
		}
		if err := rentalsvc.Renew(r, req.RenewalHours, s.clk.Now()); err != nil {
			return fromRental(err)
		}
		if err := tx.UpdateRental(ctx, r); err != nil {
			return err
		}
		p := &model.PaymentRecord{
			Type:            model.PaymentRenewal,
			TotalAmount:     approved,
			PaymentDate:     s.clk.Now(),
			OrderID:         req.OrderID,
			PaymentKey:      req.PaymentKey,
			RentalHistoryID: r.ID,
		}
		if err := tx.InsertPayment(ctx, p); err != nil {
			return err
		}
		out = RenewalResult{PaymentID: p.ID, EndTime: r.EndTime, RentalTimeHours: r.RentalTimeHours}
		return nil
	})
	if errors.Is(err, rrepo.ErrDuplicateOrder) {
		// lost the race against a replay of the same order
		replay, rerr := s.renewalReplay(ctx, s.r, req)
		if replay != nil {
			return replay, nil
		}
		err = errors.Join(err, rerr)
	}
	if err != nil {
		s.compensate(log, req.PaymentKey, approved, err)
		return nil, err
	}

	log.Info("renewal approved",
		"payment_id", out.PaymentID,
		"amount", approved,
		"end_time", out.EndTime,
		"rental_time", out.RentalTimeHours,
		"replayed", out.Replayed,
	)
	return &out, nil
}

type paymentReader interface {
	PaymentByOrderID(ctx context.Context, orderID string) (*model.PaymentRecord, error)
	GetRental(ctx context.Context, id string) (*model.RentalRecord, error)
}

// renewalReplay returns the first result when the order was already
// applied, so a retried request never charges or extends twice.
func (s *service) renewalReplay(ctx context.Context, q paymentReader, req RenewalReq) (*RenewalResult, error) {
	p, err := q.PaymentByOrderID(ctx, req.OrderID)
	if errors.Is(err, rrepo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if p.Type != model.PaymentRenewal || p.RentalHistoryID != req.RentalHistoryID {
		return nil, invalid("order %s already used for another payment", req.OrderID)
	}
	r, err := q.GetRental(ctx, p.RentalHistoryID)
	if err != nil {
		return nil, notFound(err)
	}
	if req.UserID != "" && r.UserID != req.UserID {
		return nil, makeErr(ErrForbidden)
	}
	return &RenewalResult{
		PaymentID:       p.ID,
		EndTime:         r.EndTime,
		RentalTimeHours: r.RentalTimeHours,
		Replayed:        true,
	}, nil
}

func (s *service) InitializeOverdueSettlement(ctx context.Context, rentalItemID string) (*OverdueQuote, error) {
	if rentalItemID == "" {
		return nil, invalid("rentalItemToken is required")
	}
	now := s.clk.Now()

	sctx, cancel := context.WithTimeout(ctx, s.opt.StoreTimeout)
	defer cancel()

	rec, err := s.r.FindLatestOverdueByItem(sctx, rentalItemID, now)
	if err != nil {
		return nil, notFound(err)
	}
	item, err := s.r.ItemType(sctx, rec.ItemTypeID)
	if err != nil {
		return nil, notFound(err)
	}
	od, err := rentalsvc.CalculateOverdue(rec, item, now)
	if err != nil {
		return nil, fromRental(err)
	}
	if od.Hours == 0 {
		// stored OverDue ahead of its due time: nothing payable yet
		return nil, wrapErr(ErrNotFound, fmt.Errorf("rental %s has no overdue time", rec.ID))
	}

	q := &OverdueQuote{
		APIKey:          s.opt.GatewayKey,
		OrderID:         NewOrderID(rentalItemID, now),
		OrderName:       item.Name + " 연체료",
		ExpectedEndTime: rec.EndTime,
		OverdueHours:    od.Hours,
		OverdueTime:     fmt.Sprintf("%d시간", od.Hours),
		Currency:        Currency,
		Amount:          od.Fee,
	}

	err = s.quotes.Save(sctx, quoterepo.Quote{
		OrderID:         q.OrderID,
		RentalHistoryID: rec.ID,
		RentalItemID:    rentalItemID,
		Amount:          q.Amount,
		OverdueHours:    q.OverdueHours,
		ExpectedEndTime: q.ExpectedEndTime,
		IssuedAt:        now,
	}, s.opt.QuoteTTL)
	if err != nil {
		// settlement falls back to recomputing the fee
		s.log.Warn("overdue quote not cached", "order_id", q.OrderID, "err", err)
	}
	return q, nil
}

// NewOrderID builds a gateway order id scoped to one rental item.
func NewOrderID(rentalItemID string, now time.Time) string {
	return fmt.Sprintf("%s-%d-%s", rentalItemID, now.UnixMilli(), uuid.NewString()[:8])
}

func (s *service) ApproveOverdueSettlement(ctx context.Context, req SettlementReq) (*SettlementResult, error) {
	switch {
	case req.OrderID == "", req.PaymentKey == "", req.RentalHistoryID == "":
		return nil, invalid("orderId, paymentKey and rentalHistoryId are required")
	case req.Amount <= 0:
		return nil, invalid("amount must be positive")
	}
	log := s.log.With("op", "overdue_settlement", "order_id", req.OrderID, "rental_id", req.RentalHistoryID)

	if out, err := s.settlementReplay(ctx, s.r, req); out != nil || err != nil {
		return out, err
	}

	rec, err := s.loadOwned(ctx, req.UserID, req.RentalHistoryID)
	if err != nil {
		return nil, err
	}
	fee, err := s.feeOwed(ctx, rec, req.OrderID)
	if err != nil {
		return nil, err
	}
	if req.Amount < fee {
		return nil, wrapErr(ErrInsufficientPayment, fmt.Errorf("fee is %d, got %d", fee, req.Amount))
	}

	approved, err := s.approve(ctx, log, req.PaymentKey, req.OrderID, req.Amount)
	if err != nil {
		return nil, err
	}
	if approved < fee {
		err := wrapErr(ErrInsufficientPayment, fmt.Errorf("fee is %d, gateway approved %d", fee, approved))
		s.compensate(log, req.PaymentKey, approved, err)
		return nil, err
	}

	var out SettlementResult
	err = s.commit(ctx, func(ctx context.Context, tx rrepo.Tx) error {
		if replay, err := s.settlementReplay(ctx, tx, req); replay != nil || err != nil {
			if replay != nil {
				out = *replay
			}
			return err
		}

		r, err := tx.GetRental(ctx, req.RentalHistoryID)
		if err != nil {
			return notFound(err)
		}
		now := s.clk.Now()
		if err := rentalsvc.Settle(r, req.ReturnStationID, now); err != nil {
			return fromRental(err)
		}
		if err := tx.UpdateRental(ctx, r); err != nil {
			return err
		}
		p := &model.PaymentRecord{
			Type:            model.PaymentOverdue,
			TotalAmount:     approved,
			PaymentDate:     now,
			OrderID:         req.OrderID,
			PaymentKey:      req.PaymentKey,
			RentalHistoryID: r.ID,
		}
		if err := tx.InsertPayment(ctx, p); err != nil {
			return err
		}
		out = SettlementResult{PaymentID: p.ID, ReturnTime: now, Amount: approved}
		return nil
	})
	if errors.Is(err, rrepo.ErrDuplicateOrder) {
		replay, rerr := s.settlementReplay(ctx, s.r, req)
		if replay != nil {
			return replay, nil
		}
		err = errors.Join(err, rerr)
	}
	if err != nil {
		s.compensate(log, req.PaymentKey, approved, err)
		return nil, err
	}

	log.Info("overdue settled",
		"payment_id", out.PaymentID,
		"amount", out.Amount,
		"fee", fee,
		"return_time", out.ReturnTime,
		"replayed", out.Replayed,
	)
	return &out, nil
}

func (s *service) settlementReplay(ctx context.Context, q paymentReader, req SettlementReq) (*SettlementResult, error) {
	p, err := q.PaymentByOrderID(ctx, req.OrderID)
	if errors.Is(err, rrepo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if p.Type != model.PaymentOverdue || p.RentalHistoryID != req.RentalHistoryID {
		return nil, invalid("order %s already used for another payment", req.OrderID)
	}
	r, err := q.GetRental(ctx, p.RentalHistoryID)
	if err != nil {
		return nil, notFound(err)
	}
	if req.UserID != "" && r.UserID != req.UserID {
		return nil, makeErr(ErrForbidden)
	}
	out := &SettlementResult{PaymentID: p.ID, ReturnTime: p.PaymentDate, Amount: p.TotalAmount, Replayed: true}
	if r.ReturnTime != nil {
		out.ReturnTime = *r.ReturnTime
	}
	return out, nil
}

// feeOwed is the quoted fee when a live quote exists for the order id, and
// the fee at the current instant otherwise.
func (s *service) feeOwed(ctx context.Context, rec *model.RentalRecord, orderID string) (int64, error) {
	now := s.clk.Now()
	if rentalsvc.EffectiveStatus(rec, now) != model.RentalOverDue {
		return 0, makeErr(ErrInvalidTransition)
	}

	q, err := s.quotes.Get(ctx, orderID)
	switch {
	case err == nil:
		if q.RentalHistoryID != rec.ID {
			return 0, invalid("order %s was quoted for another rental", orderID)
		}
		return q.Amount, nil
	case !errors.Is(err, quoterepo.ErrNotFound):
		s.log.Warn("overdue quote lookup failed", "order_id", orderID, "err", err)
	}

	item, err := s.r.ItemType(ctx, rec.ItemTypeID)
	if err != nil {
		return 0, notFound(err)
	}
	od, err := rentalsvc.CalculateOverdue(rec, item, now)
	if err != nil {
		return 0, fromRental(err)
	}
	return od.Fee, nil
}

func (s *service) loadOwned(ctx context.Context, userID, rentalID string) (*model.RentalRecord, error) {
	sctx, cancel := context.WithTimeout(ctx, s.opt.StoreTimeout)
	defer cancel()

	rec, err := s.r.GetRental(sctx, rentalID)
	if err != nil {
		return nil, notFound(err)
	}
	if userID != "" && rec.UserID != userID {
		return nil, makeErr(ErrForbidden)
	}
	return rec, nil
}

// approve asks the gateway once. The call is detached from the client's
// cancellation: once a charge is requested its outcome must be learned.
func (s *service) approve(ctx context.Context, log *slog.Logger, paymentKey, orderID string, amount int64) (int64, error) {
	gctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opt.GatewayTimeout)
	defer cancel()

	res, err := s.gw.Approve(gctx, gatewayrepo.ApproveReq{PaymentKey: paymentKey, OrderID: orderID, Amount: amount})
	if err != nil {
		log.Error("gateway approve failed", "err", err)
		return 0, wrapErr(ErrGatewayUnreachable, err)
	}
	if !res.Success {
		log.Warn("gateway declined", "code", res.Code, "message", res.Message)
		return 0, wrapErr(ErrGatewayDeclined, fmt.Errorf("%s %s", res.Code, res.Message))
	}
	if res.OrderID != "" && res.OrderID != orderID {
		err := fmt.Errorf("gateway approved order %q, asked for %q", res.OrderID, orderID)
		s.compensate(log, paymentKey, res.ApprovedAmount, err)
		return 0, err
	}
	if res.ApprovedAmount <= 0 {
		err := fmt.Errorf("gateway approved non-positive amount %d", res.ApprovedAmount)
		s.compensate(log, paymentKey, res.ApprovedAmount, err)
		return 0, err
	}
	if res.ApprovedAmount != amount {
		log.Warn("gateway approved a different amount", "requested", amount, "approved", res.ApprovedAmount)
	}
	return res.ApprovedAmount, nil
}

// commit runs fn in a store transaction, retrying lost optimistic races with
// exponential backoff. It runs detached from the client: the charge already
// happened and the record of it must land or fail as a whole.
func (s *service) commit(ctx context.Context, fn func(ctx context.Context, tx rrepo.Tx) error) error {
	ctx = context.WithoutCancel(ctx)
	backoff := s.opt.RetryBackoff

	var err error
	for attempt := 0; attempt <= s.opt.CommitRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(backoff)
			backoff *= 2
		}
		tctx, cancel := context.WithTimeout(ctx, s.opt.StoreTimeout)
		err = s.r.RunInTx(tctx, fn)
		cancel()
		if !errors.Is(err, rrepo.ErrConflict) {
			return err
		}
		s.log.Warn("store conflict, retrying", "attempt", attempt+1)
	}
	return wrapErr(ErrStoreConflict, err)
}

// compensate records a charge the gateway approved but this service could not
// apply. Refunds are manual.
func (s *service) compensate(log *slog.Logger, paymentKey string, amount int64, cause error) {
	log.Error("compensation required: payment approved but not applied",
		"payment_key", paymentKey,
		"approved_amount", amount,
		"err", cause,
	)
}

func notFound(err error) error {
	if errors.Is(err, rrepo.ErrNotFound) {
		return wrapErr(ErrNotFound, err)
	}
	return err
}
