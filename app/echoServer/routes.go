package echoServer

import (
	"net/http"

	"equiprental/app/echoServer/controller/payment"
	"equiprental/app/echoServer/controller/rental"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
)

type C struct {
	Payment   *payment.Controller
	Rental    *rental.Controller
	JWTSecret string
}

func Register(e *echo.Echo, c C) {
	auth := e.Group("")
	auth.Use(echojwt.WithConfig(echojwt.Config{
		SigningKey:    []byte(c.JWTSecret),
		NewClaimsFunc: func(c echo.Context) jwt.Claims { return jwt.MapClaims{} },
		TokenLookup:   "header:Authorization:Bearer ",
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": "unauthorized"})
		},
	}))
	auth.Use(userID)

	auth.POST("/payments/approve-renewal", c.Payment.ApproveRenewal)
	auth.POST("/payments/initialize-overdue", c.Payment.InitializeOverdue)
	auth.POST("/payments/approve-overdue", c.Payment.ApproveOverdue)

	auth.GET("/rentals/:id", c.Rental.Detail)
}

// userID lifts the verified sub claim onto the context as user_id.
func userID(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		reqID := ctx.Response().Header().Get(echo.HeaderXRequestID)

		tok, ok := ctx.Get("user").(*jwt.Token)
		if !ok || tok == nil {
			ctx.Logger().Warnf("[AUTH] token missing req_id=%s", reqID)
			return ctx.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": "unauthorized"})
		}
		sub, err := tok.Claims.GetSubject()
		if err != nil || sub == "" {
			ctx.Logger().Warnf("[AUTH] missing sub claim req_id=%s", reqID)
			return ctx.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": "unauthorized"})
		}

		ctx.Set("user_id", sub)
		return next(ctx)
	}
}
