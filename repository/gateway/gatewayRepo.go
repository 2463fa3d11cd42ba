package gatewayrepo

import (
	"context"
	"errors"
)

// ErrUnreachable means the gateway could not be asked or did not answer; the
// charge may or may not have been applied.
var ErrUnreachable = errors.New("payment gateway unreachable")

type ApproveReq struct {
	PaymentKey string
	OrderID    string
	Amount     int64
}

type ApproveResp struct {
	Success        bool
	ApprovedAmount int64
	OrderID        string
	Code           string
	Message        string
}

type Repo interface {
	// Approve confirms a payment the client already authorized. A refusal is
	// a non-nil response with Success == false, not an error.
	Approve(ctx context.Context, req ApproveReq) (*ApproveResp, error)
}
