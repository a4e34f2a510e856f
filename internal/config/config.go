// mpesa-gateway/internal/config/config.go
package config

import (
	"os"
	"strconv"
	"time"
)

// Config is loaded once at startup from the environment. Credentials and
// the provider shortcode live here and only here; client payloads cannot
// override them.
type Config struct {
	HTTPAddr string
	APIKey   string // inbound X-API-Key

	MpesaHost            string
	MpesaAPIKey          string
	MpesaOrigin          string
	PortC2B              int
	PortB2C              int
	PortB2B              int
	PortQueryCustomer    int
	PortQueryTransaction int
	PortReversal         int
	GatewayTimeout       time.Duration

	ServiceProviderCode string
	SecurityCredential  string
	InitiatorIdentifier string

	DatabaseDSN     string
	KafkaBrokers    string // comma-separated; empty disables the sink
	KafkaAuditTopic string

	AuditFallbackFile string

	// 0 keeps the used-set unbounded, matching single-instance deployments
	// with short process lifetimes.
	IdempotencyMaxEntries int
}

func Load() Config {
	return Config{
		HTTPAddr: getenv("HTTP_ADDR", ":8080"),
		APIKey:   getenv("API_KEY", ""),

		MpesaHost:            getenv("MPESA_API_HOST", "api.sandbox.vm.co.mz"),
		MpesaAPIKey:          getenv("MPESA_API_KEY", ""),
		MpesaOrigin:          getenv("MPESA_ORIGIN", "*"),
		PortC2B:              getenvInt("MPESA_API_PORT_C2B", 18352),
		PortB2C:              getenvInt("MPESA_API_PORT_B2C", 18345),
		PortB2B:              getenvInt("MPESA_API_PORT_B2B", 18349),
		PortQueryCustomer:    getenvInt("MPESA_API_PORT_QUERY", 19323),
		PortQueryTransaction: getenvInt("MPESA_API_PORT_QUERY_TXN", 18353),
		PortReversal:         getenvInt("MPESA_API_PORT_REVERSAL", 18354),
		GatewayTimeout:       getenvDuration("MPESA_TIMEOUT", 30*time.Second),

		ServiceProviderCode: getenv("MPESA_SERVICE_PROVIDER_CODE", "171717"),
		SecurityCredential:  getenv("MPESA_SECURITY_CREDENTIAL", ""),
		InitiatorIdentifier: getenv("MPESA_INITIATOR_IDENTIFIER", ""),

		DatabaseDSN:     getenv("DB_DSN", ""),
		KafkaBrokers:    getenv("KAFKA_BROKERS", ""),
		KafkaAuditTopic: getenv("KAFKA_AUDIT_TOPIC", "mpesa.audit"),

		AuditFallbackFile: getenv("AUDIT_FALLBACK_FILE", "audit_fallback.jsonl"),

		IdempotencyMaxEntries: getenvInt("IDEMPOTENCY_MAX_ENTRIES", 0),
	}
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getenvInt(k string, d int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return d
}

func getenvDuration(k string, d time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if t, err := time.ParseDuration(v); err == nil {
			return t
		}
	}
	return d
}
