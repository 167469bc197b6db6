package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// defaultTimeout bounds every gateway call so a ledger that never answers
// cannot stall the pipeline.
const defaultTimeout = 30 * time.Second

// GatewayClient talks to a ledger gateway over HTTP. One client serves one
// signing identity; contract handles share its connection pool.
type GatewayClient struct {
	baseURL    string
	identity   string
	httpClient *http.Client
}

// NewGatewayClient creates a client for the gateway at baseURL, signing as
// the given identity.
func NewGatewayClient(baseURL, identity string) (*GatewayClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("gateway URL cannot be empty")
	}
	if identity == "" {
		return nil, fmt.Errorf("identity cannot be empty")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid gateway URL %q: %w", baseURL, err)
	}

	return &GatewayClient{
		baseURL:  baseURL,
		identity: identity,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}, nil
}

// boundContract is a Contract bound to one contract name on one client.
type boundContract struct {
	client       *GatewayClient
	contractName string
}

// Contract returns a handle bound to the named contract.
func (g *GatewayClient) Contract(contractName string) Contract {
	return &boundContract{client: g, contractName: contractName}
}

// initResponse is the body returned by a successful init call.
type initResponse struct {
	ContractID string `json:"contractId"`
}

func (c *boundContract) Init(ctx context.Context, params []byte) (string, error) {
	path := fmt.Sprintf("/contracts/%s/init", url.PathEscape(c.contractName))
	body, err := c.client.post(ctx, path, params)
	if err != nil {
		return "", err
	}

	var res initResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return "", fmt.Errorf("failed to decode init response: %w", err)
	}
	if res.ContractID == "" {
		return "", fmt.Errorf("init response missing contractId")
	}
	return res.ContractID, nil
}

func (c *boundContract) Submit(ctx context.Context, transaction string, payload []byte) ([]byte, error) {
	path := fmt.Sprintf("/contracts/%s/transactions/%s",
		url.PathEscape(c.contractName), url.PathEscape(transaction))
	return c.client.post(ctx, path, payload)
}

// post performs one gateway call. A 409 response, or any response body
// carrying the ledger's conflict marker, maps to ErrWriteConflict so the
// submitter can tell conflicts from terminal failures.
func (g *GatewayClient) post(ctx context.Context, path string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Identity", g.identity)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read gateway response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode == http.StatusConflict || bytes.Contains(body, []byte(conflictMarker)) {
			return nil, fmt.Errorf("%w: %s", ErrWriteConflict, string(body))
		}
		return nil, fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, string(body))
	}

	slog.Debug("Gateway call succeeded", "path", path, "status", resp.StatusCode)
	return body, nil
}
