// mpesa-gateway/cmd/api/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/example/mpesa-gateway/internal/api"
	"github.com/example/mpesa-gateway/internal/audit"
	"github.com/example/mpesa-gateway/internal/config"
	"github.com/example/mpesa-gateway/internal/idempotency"
	"github.com/example/mpesa-gateway/internal/mpesa"
	"github.com/example/mpesa-gateway/internal/orchestrator"
)

const serviceName = "mpesa-gateway"

func main() {
	cfg := config.Load()
	if cfg.APIKey == "" {
		log.Fatal("API_KEY is required")
	}
	if cfg.DatabaseDSN == "" {
		log.Fatal("DB_DSN is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pg, err := audit.NewPGStore(ctx, cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("connect audit store: %v", err)
	}
	defer pg.Close()

	var store audit.Store = pg
	if cfg.KafkaBrokers != "" {
		sink := audit.NewKafkaSink(strings.Split(cfg.KafkaBrokers, ","), cfg.KafkaAuditTopic)
		defer sink.Close()
		store = audit.Tee{Primary: pg, Secondary: sink}
		log.Printf("audit records mirrored to kafka topic %s", cfg.KafkaAuditTopic)
	}

	dispatcher := audit.NewDispatcher(store, cfg.AuditFallbackFile, audit.Options{})
	resolver := idempotency.NewResolver(cfg.IdempotencyMaxEntries)

	client := mpesa.NewClient(mpesa.ClientConfig{
		Host:                 cfg.MpesaHost,
		APIKey:               cfg.MpesaAPIKey,
		Origin:               cfg.MpesaOrigin,
		PortC2B:              cfg.PortC2B,
		PortB2C:              cfg.PortB2C,
		PortB2B:              cfg.PortB2B,
		PortQueryCustomer:    cfg.PortQueryCustomer,
		PortQueryTransaction: cfg.PortQueryTransaction,
		PortReversal:         cfg.PortReversal,
		Timeout:              cfg.GatewayTimeout,
	})

	provider := orchestrator.Provider{ServiceProviderCode: cfg.ServiceProviderCode}
	build := func(f orchestrator.Family) *orchestrator.Orchestrator {
		return orchestrator.New(f, resolver, client, dispatcher, provider)
	}

	deps := api.Deps{
		CreditIn:            build(orchestrator.CreditInFamily()),
		CreditOut:           build(orchestrator.CreditOutFamily()),
		BusinessTransfer:    build(orchestrator.BusinessTransferFamily()),
		NameQuery:           build(orchestrator.NameQueryFamily()),
		StatusQuery:         build(orchestrator.StatusQueryFamily()),
		Reversal:            build(orchestrator.ReversalFamily()),
		Audit:               dispatcher,
		SecurityCredential:  cfg.SecurityCredential,
		InitiatorIdentifier: cfg.InitiatorIdentifier,
	}

	r := mux.NewRouter()
	r.Use(api.MetricsMiddleware)

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/", api.RootHandler).Methods(http.MethodGet).Name("root")
	r.HandleFunc("/healthz", api.HealthHandler).Methods(http.MethodGet).Name("health")

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.Use(api.APIKeyAuth(cfg.APIKey))
	v1.HandleFunc("/c2b/payments", api.CustomerPaymentHandler(deps.CreditIn)).Methods(http.MethodPost).Name("c2b")
	v1.HandleFunc("/b2c/payments", api.CustomerPaymentHandler(deps.CreditOut)).Methods(http.MethodPost).Name("b2c")
	v1.HandleFunc("/b2b/payments", api.BusinessTransferHandler(deps.BusinessTransfer)).Methods(http.MethodPost).Name("b2b")
	v1.HandleFunc("/query-customer", api.NameQueryHandler(deps.NameQuery)).Methods(http.MethodGet).Name("query_customer")
	v1.HandleFunc("/query-transaction", api.StatusQueryHandler(deps.StatusQuery)).Methods(http.MethodGet).Name("query_transaction")
	v1.HandleFunc("/reversal", api.ReversalHandler(deps)).Methods(http.MethodPut).Name("reversal")
	v1.HandleFunc("/monitoring/logs", api.MonitoringHandler(dispatcher)).Methods(http.MethodGet).Name("monitoring")

	handler := cors.AllowAll().Handler(r)

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.GatewayTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		log.Println("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown: %v", err)
		}
		// flush whatever the drain worker has not persisted yet
		if err := dispatcher.Close(shutdownCtx); err != nil {
			log.Printf("audit dispatcher close: %v", err)
		}
	}()

	log.Printf("%s listening at %s", serviceName, cfg.HTTPAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
	<-shutdownDone
}
