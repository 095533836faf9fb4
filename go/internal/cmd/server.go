package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/mcdev12/oralboard/go/internal/health"
	"github.com/mcdev12/oralboard/go/internal/timers"
	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

func setupServer(services *Services, port string) *http.Server {
	mux := http.NewServeMux()

	// Setup CORS middleware
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodDelete,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	registerServices(mux, services)

	setupHealthCheck(mux, services.Health)

	// Every request sees the process-owned registry through its context
	handler := timers.RegistryMiddleware(services.Registry)(mux)

	return &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           h2c.NewHandler(c.Handler(handler), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

func registerServices(mux *http.ServeMux, services *Services) {
	// REST endpoints
	services.Handler.RegisterRoutes(mux)

	// Connect RPC
	timerServicePath, timerServiceHandler := timers.NewTimerServiceHandler(services.RPC)
	mux.Handle(timerServicePath, timerServiceHandler)

	// WebSocket feed
	services.Gateway.RegisterRoutes(mux)
}

func setupHealthCheck(mux *http.ServeMux, checker *health.Checker) {
	mux.Handle("GET /health", checker)
}
