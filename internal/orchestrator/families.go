// mpesa-gateway/internal/orchestrator/families.go
package orchestrator

import "github.com/example/mpesa-gateway/internal/mpesa"

// The six vendor operation families. Endpoints and parameter names follow
// the Vodacom Mozambique openapi (ipg/v1x) contract.

func CreditInFamily() Family {
	return Family{
		Op:          mpesa.OpCreditIn,
		Endpoint:    "/ipg/v1x/c2bPayment/singleStage/",
		TokenPrefix: "mpesa",
		Hybrid:      true,
		CodeKey:     "output_ResponseCode",
		DescKey:     "output_ResponseDesc",
		SuccessCode: mpesa.CodeSuccess,
		Params: func(req Request, token string, provider Provider) map[string]string {
			return map[string]string{
				"input_TransactionReference": req.TransactionReference,
				"input_ThirdPartyReference":  token,
				"input_CustomerMSISDN":       req.CustomerMSISDN,
				"input_Amount":               formatAmount(req.Amount),
				"input_ServiceProviderCode":  provider.ServiceProviderCode,
			}
		},
	}
}

func CreditOutFamily() Family {
	return Family{
		Op:          mpesa.OpCreditOut,
		Endpoint:    "/ipg/v1x/b2cPayment/",
		TokenPrefix: "b2c",
		Hybrid:      true,
		CodeKey:     "output_ResponseCode",
		DescKey:     "output_ResponseDesc",
		SuccessCode: mpesa.CodeSuccess,
		Params: func(req Request, token string, provider Provider) map[string]string {
			return map[string]string{
				"input_TransactionReference": req.TransactionReference,
				"input_CustomerMSISDN":       req.CustomerMSISDN,
				"input_Amount":               formatAmount(req.Amount),
				"input_ThirdPartyReference":  token,
				"input_ServiceProviderCode":  provider.ServiceProviderCode,
			}
		},
	}
}

func BusinessTransferFamily() Family {
	return Family{
		Op:          mpesa.OpBusinessTransfer,
		Endpoint:    "/ipg/v1x/b2bPayment/",
		TokenPrefix: "b2b",
		Hybrid:      true,
		CodeKey:     "output_ResponseCode",
		DescKey:     "output_ResponseDesc",
		SuccessCode: mpesa.CodeSuccess,
		Params: func(req Request, token string, provider Provider) map[string]string {
			// the shortcode pair identifies the counterparties and does
			// come from the request; there is no provider code on b2b
			return map[string]string{
				"input_TransactionReference": req.TransactionReference,
				"input_Amount":               formatAmount(req.Amount),
				"input_ThirdPartyReference":  token,
				"input_PrimaryPartyCode":     req.PrimaryPartyCode,
				"input_ReceiverPartyCode":    req.ReceiverPartyCode,
			}
		},
	}
}

func NameQueryFamily() Family {
	return Family{
		Op:          mpesa.OpNameQuery,
		Endpoint:    "/ipg/v1x/queryCustomerName/",
		TokenPrefix: "query",
		CodeKey:     "output_ResultCode",
		DescKey:     "output_ResultDesc",
		SuccessCode: mpesa.CodeQuerySuccess,
		Params: func(req Request, token string, provider Provider) map[string]string {
			return map[string]string{
				"input_CustomerMSISDN":      req.CustomerMSISDN,
				"input_ThirdPartyReference": token,
				"input_ServiceProviderCode": provider.ServiceProviderCode,
			}
		},
	}
}

func StatusQueryFamily() Family {
	return Family{
		Op:          mpesa.OpStatusQuery,
		Endpoint:    "/ipg/v1x/queryTransactionStatus/",
		TokenPrefix: "query",
		CodeKey:     "output_ResponseCode",
		DescKey:     "output_ResponseDesc",
		SuccessCode: mpesa.CodeSuccess,
		Params: func(req Request, token string, provider Provider) map[string]string {
			return map[string]string{
				"input_ThirdPartyReference": token,
				"input_QueryReference":      req.QueryReference,
				"input_ServiceProviderCode": provider.ServiceProviderCode,
			}
		},
	}
}

func ReversalFamily() Family {
	return Family{
		Op:          mpesa.OpReversal,
		Endpoint:    "/ipg/v1x/reversal/",
		TokenPrefix: "reversal",
		CodeKey:     "output_ResponseCode",
		DescKey:     "output_ResponseDesc",
		SuccessCode: mpesa.CodeSuccess,
		Params: func(req Request, token string, provider Provider) map[string]string {
			params := map[string]string{
				"input_TransactionID":       req.TransactionID,
				"input_SecurityCredential":  req.SecurityCredential,
				"input_InitiatorIdentifier": req.InitiatorIdentifier,
				"input_ThirdPartyReference": token,
				"input_ServiceProviderCode": provider.ServiceProviderCode,
			}
			if req.ReversalAmount != nil {
				params["input_ReversalAmount"] = formatAmount(*req.ReversalAmount)
			}
			return params
		},
	}
}
