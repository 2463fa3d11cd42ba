package echoServer

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"equiprental/app/echoServer/controller/payment"
	"equiprental/app/echoServer/controller/rental"
	"equiprental/model"
	gatewayrepo "equiprental/repository/gateway"
	quoterepo "equiprental/repository/quote"
	rrepo "equiprental/repository/rental"
	paymentsvc "equiprental/service/payment"
	rentalsvc "equiprental/service/rental"
	"equiprental/util/clock"
	"equiprental/util/jwt"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

type approveAll struct{}

func (approveAll) Approve(ctx context.Context, req gatewayrepo.ApproveReq) (*gatewayrepo.ApproveResp, error) {
	return &gatewayrepo.ApproveResp{Success: true, ApprovedAmount: req.Amount, OrderID: req.OrderID}, nil
}

type server struct {
	e     *echo.Echo
	clk   *clock.Fixed
	store *rrepo.Memory
}

func newServer(t *testing.T, now time.Time) *server {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := rrepo.NewMemory()
	store.PutItemType(model.ItemTypeInfo{ID: "umbrella", Name: "우산", PricePerHour: 1000})
	clk := clock.NewFixed(now)

	v := validator.New()
	ps := paymentsvc.New(store, approveAll{}, quoterepo.NewMemory(clk), clk, log, paymentsvc.Options{GatewayKey: "ck_test"})
	rs := rentalsvc.New(store, clk)

	e := echo.New()
	RegisterMiddlewares(e, log)
	Register(e, C{
		Payment:   &payment.Controller{Svc: ps, V: v, Log: log},
		Rental:    &rental.Controller{Svc: rs, V: v, Log: log},
		JWTSecret: secret,
	})
	return &server{e: e, clk: clk, store: store}
}

func (s *server) do(t *testing.T, method, path, user, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if user != "" {
		tok, err := jwt.Issue(secret, user, time.Hour)
		require.NoError(t, err)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec.Code, out
}

func TestRoutes_RequireBearerToken(t *testing.T) {
	s := newServer(t, time.Now())

	code, out := s.do(t, http.MethodGet, "/rentals/anything", "", "")
	require.Equal(t, http.StatusUnauthorized, code)
	require.Equal(t, false, out["success"])

	req := httptest.NewRequest(http.MethodGet, "/rentals/anything", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer not-a-jwt")
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestRoutes_RentalLifecycle(t *testing.T) {
	due := time.Date(2024, 11, 2, 12, 0, 0, 0, time.UTC)
	s := newServer(t, due.Add(-time.Hour))
	id := s.store.PutRental(model.RentalRecord{
		Status:          model.RentalRented,
		StartTime:       due.Add(-2 * time.Hour),
		EndTime:         due,
		RentalTimeHours: 2,
		UserID:          "u1",
		RentalItemID:    "item-1",
		ItemTypeID:      "umbrella",
	})

	// renew by 2h an hour before the due time
	code, out := s.do(t, http.MethodPost, "/payments/approve-renewal", "u1",
		`{"payments":{"orderId":"o-1","paymentKey":"pk-1","amount":2000},"rentals":{"rentalHistoryToken":"`+id+`","renewalTime":2}}`)
	require.Equal(t, http.StatusOK, code, out)
	data := out["data"].(map[string]any)
	require.Equal(t, float64(4), data["rentalTime"])
	require.Equal(t, due.Add(2*time.Hour).Format(time.RFC3339), data["endTime"])

	// someone else's rental
	code, _ = s.do(t, http.MethodGet, "/rentals/"+id, "u2", "")
	require.Equal(t, http.StatusForbidden, code)

	// nothing is overdue yet
	code, out = s.do(t, http.MethodPost, "/payments/initialize-overdue", "u1", `{"rentalItemToken":"item-1"}`)
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, false, out["success"])

	// 1h05m past the extended due time
	s.clk.Set(due.Add(2*time.Hour + 65*time.Minute))
	code, out = s.do(t, http.MethodGet, "/rentals/"+id, "u1", "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, string(model.RentalOverDue), out["data"].(map[string]any)["status"])

	code, out = s.do(t, http.MethodPost, "/payments/approve-renewal", "u1",
		`{"payments":{"orderId":"o-2","paymentKey":"pk-2","amount":1000},"rentals":{"rentalHistoryToken":"`+id+`","renewalTime":1}}`)
	require.Equal(t, http.StatusConflict, code, out)

	code, out = s.do(t, http.MethodPost, "/payments/initialize-overdue", "u1", `{"rentalItemToken":"item-1"}`)
	require.Equal(t, http.StatusOK, code, out)
	quote := out["data"].(map[string]any)
	require.Equal(t, "2시간", quote["overdueTime"])
	require.Equal(t, float64(2000), quote["amount"])
	require.Equal(t, "우산 연체료", quote["orderName"])
	orderID := quote["orderId"].(string)

	code, out = s.do(t, http.MethodPost, "/payments/approve-overdue", "u1",
		`{"payments":{"orderId":"`+orderID+`","paymentKey":"pk-3","amount":1500},"rentals":{"rentalHistoryToken":"`+id+`"}}`)
	require.Equal(t, http.StatusPaymentRequired, code, out)

	code, out = s.do(t, http.MethodPost, "/payments/approve-overdue", "u1",
		`{"payments":{"orderId":"`+orderID+`","paymentKey":"pk-3","amount":2000},"rentals":{"rentalHistoryToken":"`+id+`","returnStationToken":"st-9"}}`)
	require.Equal(t, http.StatusOK, code, out)
	require.Equal(t, float64(2000), out["data"].(map[string]any)["amount"])

	code, out = s.do(t, http.MethodGet, "/rentals/"+id, "u1", "")
	require.Equal(t, http.StatusOK, code)
	detail := out["data"].(map[string]any)
	require.Equal(t, string(model.RentalReturned), detail["status"])
	require.Equal(t, "st-9", detail["returnStationId"])
	require.Len(t, detail["payments"], 2)
}

func TestRoutes_UnknownRental(t *testing.T) {
	s := newServer(t, time.Now())
	code, _ := s.do(t, http.MethodGet, "/rentals/missing", "u1", "")
	require.Equal(t, http.StatusNotFound, code)
}
