package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// ConnectionCache resolves (identity, contract) pairs to contract handles
// and caches them for the process lifetime. The underlying gateway
// connection is expensive to establish, so every caller for the same pair
// shares one handle.
type ConnectionCache struct {
	gatewayURL string

	mu      sync.Mutex
	clients map[string]*GatewayClient
	handles map[string]Contract
}

// NewConnectionCache creates an empty cache over the given gateway.
func NewConnectionCache(gatewayURL string) *ConnectionCache {
	return &ConnectionCache{
		gatewayURL: gatewayURL,
		clients:    make(map[string]*GatewayClient),
		handles:    make(map[string]Contract),
	}
}

// ResolveContract returns the cached handle for the pair, creating it on
// first use.
func (c *ConnectionCache) ResolveContract(ctx context.Context, identity, contractName string) (Contract, error) {
	if identity == "" {
		return nil, fmt.Errorf("identity cannot be empty")
	}
	if contractName == "" {
		return nil, fmt.Errorf("contract name cannot be empty")
	}

	key := identity + "::" + contractName

	c.mu.Lock()
	defer c.mu.Unlock()

	if handle, ok := c.handles[key]; ok {
		return handle, nil
	}

	client, ok := c.clients[identity]
	if !ok {
		var err error
		client, err = NewGatewayClient(c.gatewayURL, identity)
		if err != nil {
			return nil, err
		}
		c.clients[identity] = client
	}

	handle := client.Contract(contractName)
	c.handles[key] = handle

	slog.Info("Resolved contract handle",
		"identity", identity,
		"contract", contractName,
	)
	return handle, nil
}
