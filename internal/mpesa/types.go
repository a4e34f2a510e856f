// mpesa-gateway/internal/mpesa/types.go
package mpesa

import "context"

// OperationType selects the route class (port + HTTP verb) on the vendor side.
type OperationType string

const (
	OpCreditIn         OperationType = "c2b"
	OpCreditOut        OperationType = "b2c"
	OpBusinessTransfer OperationType = "b2b"
	OpNameQuery        OperationType = "query_customer"
	OpStatusQuery      OperationType = "query_transaction"
	OpReversal         OperationType = "reversal"
)

// GatewayResult is the single shape every outbound attempt collapses into.
// Transport failures land here as data, never as an error value.
type GatewayResult struct {
	Success    bool
	StatusCode int
	Body       map[string]any
	Err        string
}

// Field returns the named body value as a string, or "" when the body is
// missing, the key is absent, or the value is not a string.
func (r GatewayResult) Field(key string) string {
	if r.Body == nil {
		return ""
	}
	if v, ok := r.Body[key].(string); ok {
		return v
	}
	return ""
}

// Sender is the one blocking dependency of an orchestration cycle.
type Sender interface {
	Send(ctx context.Context, endpoint string, params map[string]string, op OperationType) GatewayResult
}
