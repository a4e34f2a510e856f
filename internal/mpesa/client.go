// mpesa-gateway/internal/mpesa/client.go
package mpesa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"
)

// ClientConfig carries the vendor connection parameters. Each operation
// family talks to a distinct port on the same host.
type ClientConfig struct {
	Host   string
	Scheme string // default https
	APIKey string
	Origin string

	PortC2B              int
	PortB2C              int
	PortB2B              int
	PortQueryCustomer    int
	PortQueryTransaction int
	PortReversal         int

	// Timeout bounds every outbound attempt. The vendor transport has no
	// default worth relying on.
	Timeout time.Duration
}

// Client is the synchronous adapter to the M-Pesa API. Queries go out as
// GET with parameters in the request target, reversals as PUT, payments as
// POST with a JSON body.
type Client struct {
	cfg   ClientConfig
	httpc *http.Client
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Origin == "" {
		cfg.Origin = "*"
	}
	if cfg.Scheme == "" {
		cfg.Scheme = "https"
	}
	return &Client{
		cfg:   cfg,
		httpc: &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *Client) port(op OperationType) int {
	switch op {
	case OpCreditOut:
		return c.cfg.PortB2C
	case OpBusinessTransfer:
		return c.cfg.PortB2B
	case OpNameQuery:
		return c.cfg.PortQueryCustomer
	case OpStatusQuery:
		return c.cfg.PortQueryTransaction
	case OpReversal:
		return c.cfg.PortReversal
	default:
		return c.cfg.PortC2B
	}
}

func (c *Client) method(op OperationType) string {
	switch op {
	case OpNameQuery, OpStatusQuery:
		return http.MethodGet
	case OpReversal:
		return http.MethodPut
	default:
		return http.MethodPost
	}
}

// Send performs exactly one outbound attempt. Any transport failure is
// converted into a failed GatewayResult; nothing propagates as an error.
func (c *Client) Send(ctx context.Context, endpoint string, params map[string]string, op OperationType) GatewayResult {
	method := c.method(op)
	target := fmt.Sprintf("%s://%s:%d%s", c.cfg.Scheme, c.cfg.Host, c.port(op), endpoint)

	var body io.Reader
	if method == http.MethodGet {
		target += "?" + encodeQuery(params)
	} else {
		raw, err := json.Marshal(params)
		if err != nil {
			return GatewayResult{Success: false, StatusCode: http.StatusInternalServerError, Err: err.Error()}
		}
		body = bytes.NewReader(raw)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return GatewayResult{Success: false, StatusCode: http.StatusInternalServerError, Err: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Origin", c.cfg.Origin)

	res, err := c.httpc.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
			log.Printf("[mpesa-client] %s timeout after %s: %v", op, c.cfg.Timeout, err)
			return GatewayResult{Success: false, StatusCode: http.StatusRequestTimeout, Err: err.Error()}
		}
		log.Printf("[mpesa-client] %s transport error: %v", op, err)
		return GatewayResult{Success: false, StatusCode: http.StatusInternalServerError, Err: err.Error()}
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return GatewayResult{Success: false, StatusCode: http.StatusInternalServerError, Err: err.Error()}
	}

	result := GatewayResult{
		Success:    res.StatusCode == http.StatusOK || res.StatusCode == http.StatusCreated,
		StatusCode: res.StatusCode,
	}
	// the vendor sometimes answers errors with a non-JSON body; keep Body
	// nil in that case and let the orchestrator fall back to INS-999
	var decoded map[string]any
	if len(raw) > 0 && json.Unmarshal(raw, &decoded) == nil {
		result.Body = decoded
	}

	log.Printf("[mpesa-client] %s %s -> %d", op, endpoint, res.StatusCode)
	return result
}

func encodeQuery(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params[k]))
	}
	return b.String()
}
