package payment

import (
	"log/slog"
	"net/http"

	"equiprental/app/echoServer/jwtx"
	paymentsvc "equiprental/service/payment"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type Controller struct {
	Svc paymentsvc.Service
	V   *validator.Validate
	Log *slog.Logger
}

// POST /payments/approve-renewal
// @Summary Approve a renewal payment and extend the rental
// @Security BearerAuth
// @Param body body ApproveRenewalReq true "payment + rental"
// @Success 200 {object} map[string]any
// @Failure 400,401,402,403,404,409,502,500
// @Router /payments/approve-renewal [post]
func (h *Controller) ApproveRenewal(c echo.Context) error {
	var req ApproveRenewalReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "invalid json"})
	}
	if err := h.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"success": false,
			"message": "validation error",
			"errors":  err.Error(),
		})
	}
	uid, _ := jwtx.UserIDFromContext(c)

	out, err := h.Svc.ApproveRenewal(c.Request().Context(), paymentsvc.RenewalReq{
		UserID:          uid,
		OrderID:         req.Payments.OrderID,
		PaymentKey:      req.Payments.PaymentKey,
		Amount:          req.Payments.Amount,
		RentalHistoryID: req.Rentals.RentalHistoryToken,
		RenewalHours:    req.Rentals.RenewalTime,
	})
	if err != nil {
		return h.fail(c, "approve renewal", err, http.StatusNotFound)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": ApproveRenewalResp{
			PaymentID:  out.PaymentID,
			EndTime:    out.EndTime,
			RentalTime: out.RentalTimeHours,
		},
	})
}

// POST /payments/initialize-overdue
// @Summary Quote the overdue fee for a rental item
// @Security BearerAuth
// @Param body body InitializeOverdueReq true "rental item"
// @Success 200 {object} map[string]any
// @Failure 400,401,500
// @Router /payments/initialize-overdue [post]
func (h *Controller) InitializeOverdue(c echo.Context) error {
	var req InitializeOverdueReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "invalid json"})
	}
	if err := h.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"success": false,
			"message": "validation error",
			"errors":  map[string]string{"rentalItemToken": "required"},
		})
	}

	q, err := h.Svc.InitializeOverdueSettlement(c.Request().Context(), req.RentalItemToken)
	if err != nil {
		// clients treat a missing overdue record as a bad request
		return h.fail(c, "initialize overdue", err, http.StatusBadRequest)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": InitializeOverdueResp{
			APIKey:          q.APIKey,
			OrderID:         q.OrderID,
			OrderName:       q.OrderName,
			ExpectedEndTime: q.ExpectedEndTime,
			OverdueTime:     q.OverdueTime,
			Currency:        q.Currency,
			Amount:          q.Amount,
		},
	})
}

// POST /payments/approve-overdue
// @Summary Pay the overdue fee and return the rental
// @Security BearerAuth
// @Param body body ApproveOverdueReq true "payment + rental"
// @Success 200 {object} map[string]any
// @Failure 400,401,402,403,404,409,502,500
// @Router /payments/approve-overdue [post]
func (h *Controller) ApproveOverdue(c echo.Context) error {
	var req ApproveOverdueReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "invalid json"})
	}
	if err := h.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"success": false,
			"message": "validation error",
			"errors":  err.Error(),
		})
	}
	uid, _ := jwtx.UserIDFromContext(c)

	out, err := h.Svc.ApproveOverdueSettlement(c.Request().Context(), paymentsvc.SettlementReq{
		UserID:          uid,
		OrderID:         req.Payments.OrderID,
		PaymentKey:      req.Payments.PaymentKey,
		Amount:          req.Payments.Amount,
		RentalHistoryID: req.Rentals.RentalHistoryToken,
		ReturnStationID: req.Rentals.ReturnStationToken,
	})
	if err != nil {
		return h.fail(c, "approve overdue", err, http.StatusNotFound)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": ApproveOverdueResp{
			PaymentID:  out.PaymentID,
			ReturnTime: out.ReturnTime,
			Amount:     out.Amount,
		},
	})
}

func (h *Controller) fail(c echo.Context, op string, err error, notFound int) error {
	code := paymentsvc.Code(err)
	switch code {
	case paymentsvc.ErrInvalidRequest:
		h.Log.Warn(op, "err", err)
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": err.Error()})
	case paymentsvc.ErrNotFound:
		h.Log.Warn(op, "err", err)
		return c.JSON(notFound, echo.Map{"success": false, "message": "rental not found"})
	case paymentsvc.ErrForbidden:
		return c.JSON(http.StatusForbidden, echo.Map{"success": false, "message": "forbidden"})
	case paymentsvc.ErrInvalidTransition:
		return c.JSON(http.StatusConflict, echo.Map{"success": false, "message": "rental state does not allow this payment"})
	case paymentsvc.ErrStoreConflict:
		h.Log.Error(op, "err", err)
		return c.JSON(http.StatusConflict, echo.Map{"success": false, "message": "rental was modified concurrently"})
	case paymentsvc.ErrGatewayDeclined:
		return c.JSON(http.StatusPaymentRequired, echo.Map{"success": false, "message": "payment declined"})
	case paymentsvc.ErrInsufficientPayment:
		return c.JSON(http.StatusPaymentRequired, echo.Map{"success": false, "message": "amount does not cover the overdue fee"})
	case paymentsvc.ErrGatewayUnreachable:
		h.Log.Error(op, "err", err)
		return c.JSON(http.StatusBadGateway, echo.Map{"success": false, "message": "payment gateway unavailable"})
	default:
		h.Log.Error(op, "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "internal error"})
	}
}
