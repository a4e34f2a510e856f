// mpesa-gateway/internal/audit/postgres.go
package audit

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/mpesa-gateway/pkg/errors"
)

// PGStore appends audit records to the mpesa_transactions table. Inserts are
// plain appends; there is no duplicate check and no update path.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(ctx context.Context, dsn string) (*PGStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.Wrap("AUDIT_DB_CONFIG", "parse audit database DSN", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap("AUDIT_DB_CONNECT", "reach audit database", err)
	}
	return &PGStore{pool: pool}, nil
}

func (s *PGStore) Insert(ctx context.Context, rec Record) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO mpesa_transactions (
			transaction_reference, third_party_reference, customer_msisdn,
			amount, service_provider_code, status, response_code,
			response_description, mpesa_transaction_id, mpesa_conversation_id,
			operation_type, api_key_used, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, rec.TransactionReference, rec.ThirdPartyReference, rec.CustomerMSISDN,
		rec.Amount, rec.ServiceProviderCode, string(rec.Status), rec.ResponseCode,
		rec.ResponseDescription, rec.GatewayTransactionID, rec.GatewayConversationID,
		rec.OperationType, rec.APIKeyUsed, rec.Timestamp)
	return err
}

func (s *PGStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PGStore) Close() {
	s.pool.Close()
}
