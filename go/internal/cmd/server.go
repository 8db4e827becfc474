package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/prabjohns-atex/scrum-daily-standup-picker/go/internal/standup/gateway"
)

func setupServer(cfg Config, services *Services) *http.Server {
	mux := http.NewServeMux()

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	registerRoutes(mux, services)

	handler := c.Handler(mux)

	return &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           h2c.NewHandler(handler, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

func registerRoutes(mux *http.ServeMux, services *Services) {
	api := gateway.NewAPIHandler(services.Controller, services.Settings, services.historyReader())
	api.RegisterRoutes(mux)

	ws := gateway.NewWebSocketHandler(services.Connections, services.Controller)
	ws.RegisterRoutes(mux)

	services.Health.RegisterRoutes(mux)
}
