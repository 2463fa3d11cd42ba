package gatewayrepo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"equiprental/util/httpx"
)

const DefaultBaseURL = "https://api.tosspayments.com"

type httpRepo struct {
	baseURL   string
	secretKey string
	client    *http.Client
}

// NewHTTP confirms payments against a Toss-style API authenticated with the
// merchant secret key.
func NewHTTP(baseURL, secretKey string, timeout time.Duration) Repo {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &httpRepo{
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
		client:    httpx.New(timeout),
	}
}

type confirmBody struct {
	PaymentKey string `json:"paymentKey"`
	OrderID    string `json:"orderId"`
	Amount     int64  `json:"amount"`
}

type confirmResp struct {
	OrderID     string `json:"orderId"`
	Status      string `json:"status"`
	TotalAmount int64  `json:"totalAmount"`
	Code        string `json:"code"`
	Message     string `json:"message"`
}

func (r *httpRepo) Approve(ctx context.Context, req ApproveReq) (*ApproveResp, error) {
	b, err := json.Marshal(confirmBody{PaymentKey: req.PaymentKey, OrderID: req.OrderID, Amount: req.Amount})
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/v1/payments/confirm", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	httpReq.SetBasicAuth(r.secretKey, "")
	httpReq.Header.Set("Content-Type", "application/json")
	// the gateway dedupes retries of the same order on this key
	httpReq.Header.Set("Idempotency-Key", req.OrderID)

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: %s", ErrUnreachable, resp.Status)
	}

	var out confirmResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		if resp.StatusCode >= 300 {
			return &ApproveResp{OrderID: req.OrderID, Message: resp.Status}, nil
		}
		return nil, fmt.Errorf("%w: undecodable confirm response: %v", ErrUnreachable, err)
	}

	if resp.StatusCode >= 300 || out.Status != "DONE" {
		return &ApproveResp{
			OrderID: req.OrderID,
			Code:    out.Code,
			Message: out.Message,
		}, nil
	}
	return &ApproveResp{
		Success:        true,
		ApprovedAmount: out.TotalAmount,
		OrderID:        out.OrderID,
	}, nil
}
