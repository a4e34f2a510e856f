// mpesa-gateway/tools/cmd/keygen/main.go
package main

import (
	"fmt"

	"github.com/example/mpesa-gateway/internal/api"
)

// Prints a fresh inbound API key for the X-API-Key header.
func main() {
	fmt.Println(api.GenerateAPIKey())
}
