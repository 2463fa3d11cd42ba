// Package main equipment rental payments API.
//
// @title           Equipment Rental Payments API
// @version         1.0
// @description     Rental renewals and overdue settlements against a payment gateway.
// @BasePath        /
// @schemes         http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description  Use:  Bearer <JWT>
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"equiprental/app/echoServer"
	paymentctrl "equiprental/app/echoServer/controller/payment"
	rentalctrl "equiprental/app/echoServer/controller/rental"
	"equiprental/app/echoServer/validation"
	"equiprental/config"
	gatewayrepo "equiprental/repository/gateway"
	quoterepo "equiprental/repository/quote"
	rentalrepo "equiprental/repository/rental"
	paymentsvc "equiprental/service/payment"
	rentalsvc "equiprental/service/rental"
	"equiprental/util/clock"
	"equiprental/util/database"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	echoSwagger "github.com/swaggo/echo-swagger"
)

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// logger
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := rentalrepo.EnsureSchema(ctx, db); err != nil {
		log.Error("schema setup failed", "err", err)
		os.Exit(1)
	}

	clk := clock.System()

	// repos
	rr := rentalrepo.New(db)
	gw := gatewayrepo.NewHTTP(cfg.Gateway.BaseURL, cfg.Gateway.SecretKey, cfg.Gateway.Timeout)
	var qr quoterepo.Repo
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis unavailable, quotes will be recomputed at settlement", "addr", cfg.RedisAddr, "err", err)
		}
		qr = quoterepo.NewRedis(rdb)
	} else {
		qr = quoterepo.NewMemory(clk)
	}

	// services
	ps := paymentsvc.New(rr, gw, qr, clk, log, paymentsvc.Options{
		GatewayKey:     cfg.Gateway.ClientKey,
		GatewayTimeout: cfg.Gateway.Timeout,
		StoreTimeout:   cfg.StoreTimeout,
		CommitRetries:  cfg.CommitRetries,
		QuoteTTL:       cfg.QuoteTTL,
	})
	rs := rentalsvc.New(rr, clk)

	if cfg.SweepInterval > 0 {
		go rentalsvc.NewCleaner(rr, clk, log).Run(ctx, cfg.SweepInterval)
	}

	// controllers
	v := validator.New()
	paymentC := &paymentctrl.Controller{Svc: ps, V: v, Log: log}
	rentalC := &rentalctrl.Controller{Svc: rs, V: v, Log: log}

	// echo
	e := echo.New()
	e.HideBanner = true
	echoServer.RegisterMiddlewares(e, log)
	e.Validator = validation.New(v)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]any{
			"status":  "ok",
			"message": "Service is healthy and connected",
		})
	})

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	echoServer.Register(e, echoServer.C{
		Payment:   paymentC,
		Rental:    rentalC,
		JWTSecret: cfg.JWTSecret,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Port
	}

	go func() {
		log.Info("starting server", "port", port, "env", cfg.Env)
		if err := e.Start(":" + port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(sctx); err != nil {
		log.Error("shutdown", "err", err)
	}
}
