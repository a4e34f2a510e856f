// mpesa-gateway/internal/api/validate.go
package api

import (
	"fmt"
	"math"
	"regexp"
)

var msisdnRE = regexp.MustCompile(`^258[0-9]{9}$`)

const maxAmount = 1_000_000

// validation failures short-circuit with 400 before any orchestration or
// audit record exists

func validateReference(name, v string, required bool) error {
	if v == "" {
		if required {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}
	if len(v) > 50 {
		return fmt.Errorf("%s must be between 1 and 50 characters", name)
	}
	return nil
}

func validateMSISDN(v string) error {
	if !msisdnRE.MatchString(v) {
		return fmt.Errorf("customer_msisdn must be in format 258XXXXXXXXX")
	}
	return nil
}

func validateAmount(v float64) error {
	if v <= 0 {
		return fmt.Errorf("amount must be greater than 0")
	}
	if v > maxAmount {
		return fmt.Errorf("amount must not exceed %d", maxAmount)
	}
	return nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
