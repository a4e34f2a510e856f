// mpesa-gateway/internal/api/handlers.go
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/example/mpesa-gateway/internal/audit"
	"github.com/example/mpesa-gateway/internal/orchestrator"
)

// Deps wires one orchestrator per operation family plus the audit
// dispatcher for the monitoring endpoint.
type Deps struct {
	CreditIn         *orchestrator.Orchestrator
	CreditOut        *orchestrator.Orchestrator
	BusinessTransfer *orchestrator.Orchestrator
	NameQuery        *orchestrator.Orchestrator
	StatusQuery      *orchestrator.Orchestrator
	Reversal         *orchestrator.Orchestrator
	Audit            *audit.Dispatcher

	// credentials injected into reversal requests when the client omits them
	SecurityCredential  string
	InitiatorIdentifier string
}

type C2BPaymentRequest struct {
	TransactionReference string  `json:"transaction_reference"`
	CustomerMSISDN       string  `json:"customer_msisdn"`
	Amount               float64 `json:"amount"`
	ThirdPartyReference  string  `json:"third_party_reference,omitempty"`
}

type B2BPaymentRequest struct {
	TransactionReference string  `json:"transaction_reference"`
	Amount               float64 `json:"amount"`
	ThirdPartyReference  string  `json:"third_party_reference,omitempty"`
	PrimaryPartyCode     string  `json:"primary_party_code"`
	ReceiverPartyCode    string  `json:"receiver_party_code"`
}

type ReversalRequest struct {
	TransactionID       string   `json:"transaction_id"`
	SecurityCredential  string   `json:"security_credential,omitempty"`
	InitiatorIdentifier string   `json:"initiator_identifier,omitempty"`
	ThirdPartyReference string   `json:"third_party_reference"`
	ReversalAmount      *float64 `json:"reversal_amount,omitempty"`
}

// CustomerPaymentHandler serves the consumer-facing payment families (C2B
// and B2C share one request shape).
func CustomerPaymentHandler(orc *orchestrator.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in C2BPaymentRequest
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "malformed JSON body", nil)
			return
		}
		// validate the rounded value; it is what goes on the wire
		in.Amount = round2(in.Amount)
		if err := firstError(
			validateReference("transaction_reference", in.TransactionReference, true),
			validateMSISDN(in.CustomerMSISDN),
			validateAmount(in.Amount),
			validateReference("third_party_reference", in.ThirdPartyReference, false),
		); err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
			return
		}

		resp := orc.Process(r.Context(), orchestrator.Request{
			TransactionReference: in.TransactionReference,
			CustomerMSISDN:       in.CustomerMSISDN,
			Amount:               in.Amount,
			ThirdPartyReference:  in.ThirdPartyReference,
			APIKey:               "default",
		})
		respond(w, resp)
	}
}

func BusinessTransferHandler(orc *orchestrator.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in B2BPaymentRequest
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "malformed JSON body", nil)
			return
		}
		in.Amount = round2(in.Amount)
		if err := firstError(
			validateReference("transaction_reference", in.TransactionReference, true),
			validateAmount(in.Amount),
			validateReference("third_party_reference", in.ThirdPartyReference, false),
			validateReference("primary_party_code", in.PrimaryPartyCode, true),
			validateReference("receiver_party_code", in.ReceiverPartyCode, true),
		); err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
			return
		}

		resp := orc.Process(r.Context(), orchestrator.Request{
			TransactionReference: in.TransactionReference,
			Amount:               in.Amount,
			ThirdPartyReference:  in.ThirdPartyReference,
			PrimaryPartyCode:     in.PrimaryPartyCode,
			ReceiverPartyCode:    in.ReceiverPartyCode,
			APIKey:               "default",
		})
		respond(w, resp)
	}
}

// NameQueryHandler reads its fields from the query string; the vendor call
// is a GET as well.
func NameQueryHandler(orc *orchestrator.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		msisdn := q.Get("customer_msisdn")
		token := q.Get("third_party_reference")
		if err := firstError(
			validateMSISDN(msisdn),
			validateReference("third_party_reference", token, true),
		); err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
			return
		}

		resp := orc.Process(r.Context(), orchestrator.Request{
			TransactionReference: token,
			CustomerMSISDN:       msisdn,
			ThirdPartyReference:  token,
			APIKey:               "default",
		})
		respond(w, resp)
	}
}

func StatusQueryHandler(orc *orchestrator.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		token := q.Get("third_party_reference")
		ref := q.Get("query_reference")
		if err := firstError(
			validateReference("third_party_reference", token, true),
			validateReference("query_reference", ref, true),
		); err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
			return
		}

		resp := orc.Process(r.Context(), orchestrator.Request{
			TransactionReference: token,
			ThirdPartyReference:  token,
			QueryReference:       ref,
			APIKey:               "default",
		})
		respond(w, resp)
	}
}

func ReversalHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in ReversalRequest
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "malformed JSON body", nil)
			return
		}
		if err := firstError(
			validateReference("transaction_id", in.TransactionID, true),
			validateReference("third_party_reference", in.ThirdPartyReference, true),
		); err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
			return
		}
		if in.ReversalAmount != nil {
			v := round2(*in.ReversalAmount)
			if err := validateAmount(v); err != nil {
				writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "reversal_"+err.Error(), nil)
				return
			}
			in.ReversalAmount = &v
		}

		cred := in.SecurityCredential
		if cred == "" {
			cred = d.SecurityCredential
		}
		initiator := in.InitiatorIdentifier
		if initiator == "" {
			initiator = d.InitiatorIdentifier
		}

		resp := d.Reversal.Process(r.Context(), orchestrator.Request{
			TransactionReference: in.ThirdPartyReference,
			TransactionID:        in.TransactionID,
			SecurityCredential:   cred,
			InitiatorIdentifier:  initiator,
			ThirdPartyReference:  in.ThirdPartyReference,
			ReversalAmount:       in.ReversalAmount,
			APIKey:               "default",
		})
		respond(w, resp)
	}
}

// MonitoringHandler exposes the audit dispatcher snapshot.
func MonitoringHandler(d *audit.Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeSuccess(w, http.StatusOK, d.Stats(), "Audit logging statistics")
	}
}

// RootHandler identifies the service for probes hitting /.
func RootHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "mpesa-gateway",
		"status":  "running",
		"api":     "/api/v1",
	})
}

func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"service": "mpesa-gateway",
		"ts":      time.Now().UTC(),
	})
}

func respond(w http.ResponseWriter, resp orchestrator.Response) {
	if resp.Success {
		writeSuccess(w, resp.HTTPStatus, resp, resp.ResponseDescription)
		return
	}
	writeError(w, resp.HTTPStatus, resp.ResponseCode, resp.ResponseDescription, resp)
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
