package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/velmora/storefront/internal/config"
	"github.com/velmora/storefront/internal/es"
	"github.com/velmora/storefront/internal/handlers"
	"github.com/velmora/storefront/internal/logging"
	"github.com/velmora/storefront/internal/mail"
	loggingmw "github.com/velmora/storefront/internal/middleware/logging"
	"github.com/velmora/storefront/internal/mykafka"
	"github.com/velmora/storefront/internal/payment"
	"github.com/velmora/storefront/internal/service"
	httpserver "github.com/velmora/storefront/internal/transport/http"
)

const productIndex = "product"

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(configuration.LOG_LEVEL)

	db, err := config.InitDB(configuration)
	if err != nil {
		log.Fatalf("database init error: %v", err)
	}

	jwtSecret := []byte(configuration.JWT_SECRET)
	refreshSecret := []byte(configuration.REFRESH_SECRET)

	prod, err := mykafka.NewProducer([]string{configuration.KAFKA_ADDRESS})
	if err != nil {
		log.Fatal(err)
	}

	esClient, err := es.NewClient(configuration)
	if err != nil {
		log.Fatal(err)
	}

	gateway := payment.NewRazorpayGateway(configuration.RAZORPAY_KEY_ID, configuration.RAZORPAY_KEY_SECRET)
	mailer := mail.NewSMTPSender(configuration)

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID())
	e.Use(loggingmw.RequestLogger(logger))

	deps := httpserver.Deps{
		DB: db,
		AuthHandler: &handlers.AuthHandler{
			DB:            db,
			JWTSecret:     jwtSecret,
			RefreshSecret: refreshSecret,
			Producer:      prod,
			Mailer:        mailer,
			AppURL:        configuration.APP_URL,
		},
		ProductHandler: &handlers.ProductHandler{DB: db, ES: esClient, Index: productIndex, Producer: prod},
		CartHandler:    &handlers.CartHandler{DB: db, Producer: prod},
		OrderHandler:   &handlers.OrderHandler{DB: db, Producer: prod},
		PaymentHandler: &handlers.PaymentHandler{
			DB:        db,
			Gateway:   gateway,
			KeyID:     configuration.RAZORPAY_KEY_ID,
			KeySecret: []byte(configuration.RAZORPAY_KEY_SECRET),
			Producer:  prod,
		},
		SearchHandler: &handlers.SearchHandler{ES: esClient, Index: productIndex},
		TokenService:  &service.TokenService{DB: db, JWTSecret: jwtSecret, RefreshSecret: refreshSecret},
	}

	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         ":8080",
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	} else {
		log.Printf("db() error: %v", err)
	}

	if err := prod.Close(); err != nil {
		log.Printf("kafka close error: %v", err)
	}

	log.Println("shutdown complete")
}
