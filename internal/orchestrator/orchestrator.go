// mpesa-gateway/internal/orchestrator/orchestrator.go
package orchestrator

import (
	"context"
	"log"
	"math"
	"strconv"
	"time"

	"github.com/example/mpesa-gateway/internal/audit"
	"github.com/example/mpesa-gateway/internal/idempotency"
	"github.com/example/mpesa-gateway/internal/mpesa"
	m "github.com/example/mpesa-gateway/pkg/metrics"
)

// Request carries the validated fields of one inbound operation. Built per
// request, never mutated, survives only inside the audit trail.
type Request struct {
	TransactionReference string
	ThirdPartyReference  string // client-supplied idempotency token, optional
	CustomerMSISDN       string
	Amount               float64
	PrimaryPartyCode     string
	ReceiverPartyCode    string
	TransactionID        string
	SecurityCredential   string
	InitiatorIdentifier  string
	QueryReference       string
	ReversalAmount       *float64
	APIKey               string
}

// Response is the caller-facing contract. ThirdPartyReference is always
// populated, even on total failure, so the caller can correlate later.
type Response struct {
	ConversationID      string `json:"conversation_id,omitempty"`
	TransactionID       string `json:"transaction_id,omitempty"`
	ThirdPartyReference string `json:"third_party_reference"`
	ResponseCode        string `json:"response_code"`
	ResponseDescription string `json:"response_description"`
	CustomerName        string `json:"customer_name,omitempty"`
	TransactionStatus   string `json:"transaction_status,omitempty"`

	Success    bool `json:"-"`
	HTTPStatus int  `json:"-"`
}

// Provider holds the server-side vendor identity. The shortcode never comes
// from the client payload; a caller must not be able to redirect funds.
type Provider struct {
	ServiceProviderCode string
}

// Family describes one of the six operation shapes. The orchestration cycle
// is identical across families; only the wire details differ.
type Family struct {
	Op          mpesa.OperationType
	Endpoint    string
	TokenPrefix string
	// Hybrid enables the reuse/generate token policy. Only the three
	// creation families run it; queries and reversals send the client
	// reference untouched.
	Hybrid bool
	// Vendor vocabulary for this family's response bodies.
	CodeKey     string
	DescKey     string
	SuccessCode string // assumed when a success body omits CodeKey
	Params      func(req Request, token string, provider Provider) map[string]string
}

// Orchestrator runs the request/response cycle for one family:
// resolve token, audit pending, dispatch, normalize, audit result.
// Process never fails upward; every outcome is a well-formed Response.
type Orchestrator struct {
	family   Family
	resolver *idempotency.Resolver
	sender   mpesa.Sender
	dispatch *audit.Dispatcher
	provider Provider
}

func New(family Family, resolver *idempotency.Resolver, sender mpesa.Sender, dispatch *audit.Dispatcher, provider Provider) *Orchestrator {
	return &Orchestrator{
		family:   family,
		resolver: resolver,
		sender:   sender,
		dispatch: dispatch,
		provider: provider,
	}
}

func (o *Orchestrator) Process(ctx context.Context, req Request) (resp Response) {
	start := time.Now()
	token := o.family.TokenPrefix + "_ref_error"

	defer func() {
		if r := recover(); r != nil {
			log.Printf("[%s] panic recovered: %v", o.family.Op, r)
			info := mpesa.Translate(mpesa.CodeUnknown)
			resp = Response{
				ThirdPartyReference: token,
				ResponseCode:        mpesa.CodeUnknown,
				ResponseDescription: info.Message,
				HTTPStatus:          info.HTTPStatus,
			}
			o.auditResult(req, token, resp)
		}
		status := "FAILED"
		if resp.Success {
			status = "SUCCESS"
		}
		m.IncOperation(string(o.family.Op), status)
		m.ObserveOperation(string(o.family.Op), status, time.Since(start).Seconds())
	}()

	if o.family.Hybrid {
		token = o.resolver.Resolve(o.family.TokenPrefix, req.ThirdPartyReference, req.TransactionReference)
	} else {
		token = req.ThirdPartyReference
	}

	o.auditPending(req, token)

	params := o.family.Params(req, token, o.provider)
	result := o.sender.Send(ctx, o.family.Endpoint, params, o.family.Op)

	resp = o.normalize(result, token)
	o.auditResult(req, token, resp)
	return resp
}

func (o *Orchestrator) normalize(result mpesa.GatewayResult, token string) Response {
	if result.Success {
		if result.Body == nil {
			info := mpesa.Translate(mpesa.CodeUnknown)
			return Response{
				ThirdPartyReference: token,
				ResponseCode:        mpesa.CodeUnknown,
				ResponseDescription: "Invalid gateway response (missing body)",
				HTTPStatus:          info.HTTPStatus,
			}
		}
		code := result.Field(o.family.CodeKey)
		if code == "" {
			code = o.family.SuccessCode
		}
		return o.build(result, token, code)
	}

	// failure: extract whatever code the partial body carries; a timed-out
	// call gets the request-timeout class, anything else the unknown class
	code := result.Field(o.family.CodeKey)
	if code == "" {
		if result.StatusCode == 408 {
			code = mpesa.CodeTimeout
		} else {
			code = mpesa.CodeUnknown
		}
	}
	if result.Err != "" {
		log.Printf("[%s] gateway failure: %s", o.family.Op, result.Err)
	}
	return o.build(result, token, code)
}

// build assembles the normalized response, preferring the gateway's own
// human-readable description over the translator default when both exist.
func (o *Orchestrator) build(result mpesa.GatewayResult, token, code string) Response {
	info := mpesa.Translate(code)
	desc := result.Field(o.family.DescKey)
	if desc == "" {
		desc = info.Message
	}
	return Response{
		ConversationID:      result.Field("output_ConversationID"),
		TransactionID:       result.Field("output_TransactionID"),
		ThirdPartyReference: token,
		ResponseCode:        code,
		ResponseDescription: desc,
		CustomerName:        result.Field("output_CustomerName"),
		TransactionStatus:   result.Field("output_ResponseTransactionStatus"),
		Success:             info.Success,
		HTTPStatus:          info.HTTPStatus,
	}
}

func (o *Orchestrator) auditPending(req Request, token string) {
	o.dispatch.Enqueue(audit.Record{
		TransactionReference: req.TransactionReference,
		ThirdPartyReference:  token,
		CustomerMSISDN:       req.CustomerMSISDN,
		Amount:               req.Amount,
		ServiceProviderCode:  o.provider.ServiceProviderCode,
		Status:               audit.StatusPending,
		ResponseCode:         "PENDING",
		ResponseDescription:  "Transaction started",
		OperationType:        string(o.family.Op),
		APIKeyUsed:           req.APIKey,
	})
}

func (o *Orchestrator) auditResult(req Request, token string, resp Response) {
	status := audit.StatusFailed
	if resp.Success {
		status = audit.StatusSuccess
	}
	o.dispatch.Enqueue(audit.Record{
		TransactionReference:  req.TransactionReference,
		ThirdPartyReference:   token,
		CustomerMSISDN:        req.CustomerMSISDN,
		Amount:                req.Amount,
		ServiceProviderCode:   o.provider.ServiceProviderCode,
		Status:                status,
		ResponseCode:          resp.ResponseCode,
		ResponseDescription:   resp.ResponseDescription,
		GatewayTransactionID:  resp.TransactionID,
		GatewayConversationID: resp.ConversationID,
		OperationType:         string(o.family.Op),
		APIKeyUsed:            req.APIKey,
	})
}

func formatAmount(amount float64) string {
	return strconv.FormatFloat(math.Round(amount*100)/100, 'f', 2, 64)
}
