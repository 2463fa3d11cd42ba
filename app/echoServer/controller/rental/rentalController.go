package rental

import (
	"log/slog"
	"net/http"

	"equiprental/app/echoServer/jwtx"
	rs "equiprental/service/rental"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type Controller struct {
	Svc rs.Service
	V   *validator.Validate
	Log *slog.Logger
}

// GET /rentals/:id
// @Summary Rental with its effective status and payments
// @Security BearerAuth
// @Success 200 {object} map[string]any
// @Failure 400,401,403,404,500
// @Router /rentals/{id} [get]
func (h *Controller) Detail(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "invalid id"})
	}
	uid, _ := jwtx.UserIDFromContext(c)

	d, err := h.Svc.Get(c.Request().Context(), uid, id)
	if err != nil {
		switch rs.Code(err) {
		case rs.ErrNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"success": false, "message": "rental not found"})
		case rs.ErrNotOwner:
			return c.JSON(http.StatusForbidden, echo.Map{"success": false, "message": "forbidden"})
		default:
			h.Log.Error("rental detail", "err", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "internal error"})
		}
	}

	r := d.Rental
	out := RentalResp{
		ID:              r.ID,
		Status:          r.Status,
		StartTime:       r.StartTime,
		EndTime:         r.EndTime,
		ReturnTime:      r.ReturnTime,
		RentalTime:      r.RentalTimeHours,
		RentalItemID:    r.RentalItemID,
		ItemTypeID:      r.ItemTypeID,
		RentalStationID: r.RentalStationID,
		ReturnStationID: r.ReturnStationID,
		Payments:        make([]PaymentResp, 0, len(d.Payments)),
	}
	for _, p := range d.Payments {
		out.Payments = append(out.Payments, PaymentResp{
			ID:          p.ID,
			Type:        p.Type,
			TotalAmount: p.TotalAmount,
			PaymentDate: p.PaymentDate,
			OrderID:     p.OrderID,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": out})
}
