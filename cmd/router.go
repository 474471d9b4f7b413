package main

import (
	"net/http"

	"github.com/yunabot/dispatch-gateway/internal/handler"
	"github.com/yunabot/dispatch-gateway/internal/metrics"
)

func setupRouter(gatewayHandler *handler.GatewayHandler, collector *metrics.Collector, strategy string) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/generate", gatewayHandler.Generate)
	mux.HandleFunc("/backends", gatewayHandler.Backends)
	mux.HandleFunc("/metrics", collector.Handler(strategy))

	return mux
}
