// mpesa-gateway/internal/audit/record.go
package audit

import (
	"context"
	"time"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Record is one append-only audit row. A transaction produces a pending
// record at orchestration start and a success/failed record after the
// outbound call; nothing is updated in place. Consumers fold by
// transaction_reference + timestamp, never by arrival order.
type Record struct {
	TransactionReference  string    `json:"transaction_reference"`
	ThirdPartyReference   string    `json:"third_party_reference"`
	CustomerMSISDN        string    `json:"customer_msisdn,omitempty"`
	Amount                float64   `json:"amount,omitempty"`
	ServiceProviderCode   string    `json:"service_provider_code,omitempty"`
	Status                Status    `json:"status"`
	ResponseCode          string    `json:"response_code"`
	ResponseDescription   string    `json:"response_description"`
	GatewayTransactionID  string    `json:"mpesa_transaction_id,omitempty"`
	GatewayConversationID string    `json:"mpesa_conversation_id,omitempty"`
	OperationType         string    `json:"operation_type"`
	APIKeyUsed            string    `json:"api_key_used,omitempty"`
	Timestamp             time.Time `json:"timestamp"`
}

// Store is the durable collaborator: best-effort, order-independent append.
type Store interface {
	Insert(ctx context.Context, rec Record) error
}
