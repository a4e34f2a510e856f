// mpesa-gateway/internal/mpesa/codes.go
package mpesa

import "net/http"

// Official response codes from Vodacom Mozambique.
const (
	CodeSuccess = "INS-0"
	CodeTimeout = "INS-9"
	CodeUnknown = "INS-999"

	// The customer-name query speaks a different vocabulary and
	// reports plain "0" on success.
	CodeQuerySuccess = "0"
)

type CodeInfo struct {
	HTTPStatus int
	Message    string
	Success    bool
}

var responseCodes = map[string]CodeInfo{
	CodeSuccess:      {http.StatusCreated, "Request processed successfully", true},
	CodeQuerySuccess: {http.StatusOK, "Success", true},

	"INS-1":  {http.StatusInternalServerError, "Internal Error", false},
	"INS-2":  {http.StatusUnauthorized, "Invalid API Key", false},
	"INS-4":  {http.StatusUnauthorized, "User is not active", false},
	"INS-5":  {http.StatusUnauthorized, "Transaction cancelled by customer", false},
	"INS-6":  {http.StatusUnauthorized, "Transaction Failed", false},
	CodeTimeout: {http.StatusRequestTimeout, "Request timeout", false},
	"INS-10": {http.StatusConflict, "Duplicate Transaction", false},
	"INS-13": {http.StatusBadRequest, "Invalid Shortcode Used", false},
	"INS-14": {http.StatusBadRequest, "Invalid Reference Used", false},
	"INS-15": {http.StatusBadRequest, "Invalid Amount Used", false},
	"INS-16": {http.StatusServiceUnavailable, "Unable to handle the request due to a temporary overloading", false},
	"INS-17": {http.StatusBadRequest, "Invalid Transaction Reference. Length Should Be Between 1 and 20.", false},
	"INS-18": {http.StatusBadRequest, "Invalid TransactionID Used", false},
	"INS-19": {http.StatusBadRequest, "Invalid ThirdPartyReference Used", false},
	"INS-20": {http.StatusBadRequest, "Not All Parameters Provided. Please try again.", false},
	"INS-21": {http.StatusBadRequest, "Parameter validations failed. Please try again.", false},
	"INS-22": {http.StatusBadRequest, "Invalid Operation Type", false},
	"INS-23": {http.StatusBadRequest, "Unknown Status. Contact M-Pesa Support", false},

	"INS-2001": {http.StatusBadRequest, "Initiator authentication error.", false},
	"INS-2002": {http.StatusBadRequest, "Receiver invalid.", false},
	"INS-2006": {http.StatusUnprocessableEntity, "Insufficient balance", false},
	"INS-2051": {http.StatusBadRequest, "MSISDN invalid.", false},
	"INS-2057": {http.StatusBadRequest, "Language code invalid.", false},

	CodeUnknown: {http.StatusInternalServerError, "Unknown M-Pesa error", false},
}

// Translate maps a vendor response code to its HTTP status, default message
// and success flag. Unmapped codes fall back to the INS-999 entry, so the
// function is total.
func Translate(code string) CodeInfo {
	if info, ok := responseCodes[code]; ok {
		return info
	}
	return responseCodes[CodeUnknown]
}
