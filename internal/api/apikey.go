// mpesa-gateway/internal/api/apikey.go
package api

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/google/uuid"
)

// GenerateAPIKey produces an inbound key in the mpesa_<32hex>_<22b64url>
// shape used for the X-API-Key header.
func GenerateAPIKey() string {
	u := uuid.New()
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return fmt.Sprintf("mpesa_%x_%s", u[:], base64.RawURLEncoding.EncodeToString(buf))
}
