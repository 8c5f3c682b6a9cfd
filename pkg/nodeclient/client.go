// Package nodeclient is a typed HTTP client for a single remote block-node
// store. Each Client knows one node's base URL and caches a liveness flag
// updated by I/O outcomes, per spec.md §4.6.
package nodeclient

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/marmos91/raid5fs/internal/logger"
)

// defaultBlockTimeout bounds a single store/retrieve/delete call.
const defaultBlockTimeout = 5 * time.Second

// Client is a typed HTTP client to one block-node.
type Client struct {
	id         string
	baseURL    string
	httpClient *http.Client
	online     atomic.Bool
}

// New creates a client for the node identified by id at baseURL. The node
// is assumed online until an I/O outcome says otherwise.
func New(id, baseURL string) *Client {
	c := &Client{
		id:      id,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	c.online.Store(true)
	return c
}

// ID returns the node-id this client addresses.
func (c *Client) ID() string { return c.id }

// BaseURL returns the node's base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// IsOnline reports the cached liveness flag. Liveness is a runtime cache
// updated by I/O outcomes; it is never persisted (spec.md §3).
func (c *Client) IsOnline() bool { return c.online.Load() }

func (c *Client) markOffline() {
	if c.online.Swap(false) {
		logger.Warn("node marked offline", "node_id", c.id, "url", c.baseURL)
	}
}

func (c *Client) markOnline() {
	if !c.online.Swap(true) {
		logger.Info("node marked online", "node_id", c.id, "url", c.baseURL)
	}
}

type storeRequest struct {
	BlockID string `json:"block_id"`
	Data    string `json:"data"`
}

type storeResponse struct {
	Message string `json:"message"`
	BlockID string `json:"block_id"`
}

type retrieveResponse struct {
	BlockID string `json:"block_id"`
	Data    string `json:"data"`
}

// Store writes a block to the node. HTTP 507 (insufficient storage) is
// reported as ErrStorageFull without marking the node offline; any other
// transport error or non-2xx marks the node offline.
func (c *Client) Store(ctx context.Context, blockID string, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, defaultBlockTimeout)
	defer cancel()

	body, err := json.Marshal(storeRequest{BlockID: blockID, Data: hex.EncodeToString(data)})
	if err != nil {
		return fmt.Errorf("encode store request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/store", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build store request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.markOffline()
		return fmt.Errorf("store %s on node %s: %w", blockID, c.id, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		c.markOnline()
		var out storeResponse
		_ = json.NewDecoder(resp.Body).Decode(&out)
		return nil
	case resp.StatusCode == http.StatusInsufficientStorage:
		// Node is reachable and healthy; it is simply full.
		return ErrStorageFull
	case resp.StatusCode == http.StatusBadRequest:
		c.markOffline()
		return ErrBadRequest
	default:
		c.markOffline()
		return fmt.Errorf("store %s on node %s: unexpected status %d", blockID, c.id, resp.StatusCode)
	}
}

// Retrieve fetches a block from the node. A 404 is reported as
// ErrMissing and does not mark the node offline (the node answered, so
// it is marked online); a transport error or 5xx marks the node offline.
func (c *Client) Retrieve(ctx context.Context, blockID string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultBlockTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/retrieve/"+blockID, nil)
	if err != nil {
		return nil, fmt.Errorf("build retrieve request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.markOffline()
		return nil, fmt.Errorf("retrieve %s from node %s: %w", blockID, c.id, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
		c.markOnline()
		var out retrieveResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, fmt.Errorf("decode retrieve response: %w", err)
		}
		data, err := hex.DecodeString(out.Data)
		if err != nil {
			return nil, fmt.Errorf("decode block hex payload: %w", err)
		}
		return data, nil
	case resp.StatusCode == http.StatusNotFound:
		c.markOnline()
		return nil, ErrMissing
	case resp.StatusCode >= 500:
		c.markOffline()
		return nil, fmt.Errorf("retrieve %s from node %s: server error %d", blockID, c.id, resp.StatusCode)
	default:
		return nil, fmt.Errorf("retrieve %s from node %s: unexpected status %d", blockID, c.id, resp.StatusCode)
	}
}

// Delete removes a block from the node. A 404 is treated as success
// (idempotent per spec.md §4.6).
func (c *Client) Delete(ctx context.Context, blockID string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultBlockTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/delete/"+blockID, nil)
	if err != nil {
		return fmt.Errorf("build delete request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.markOffline()
		return fmt.Errorf("delete %s on node %s: %w", blockID, c.id, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusNotFound {
		c.markOnline()
		return nil
	}
	c.markOffline()
	return fmt.Errorf("delete %s on node %s: unexpected status %d", blockID, c.id, resp.StatusCode)
}

// nodeInfoResponse mirrors the body of GET / on a block-node.
type nodeInfoResponse struct {
	Message             string `json:"message"`
	StoragePath         string `json:"storage_path"`
	CapacityBytes       uint64 `json:"capacity_bytes"`
	UsedSpaceBytes      uint64 `json:"used_space_bytes"`
	AvailableSpaceBytes uint64 `json:"available_space_bytes"`
}

// Probe issues a lightweight GET / to rehabilitate a node to online
// before its next use. No background prober is required by spec.md §4.6;
// callers invoke Probe opportunistically (e.g. before a status report).
func (c *Client) Probe(ctx context.Context) (capacity, used, available uint64, err error) {
	ctx, cancel := context.WithTimeout(ctx, defaultBlockTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("build probe request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.markOffline()
		return 0, 0, 0, fmt.Errorf("probe node %s: %w", c.id, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		c.markOffline()
		return 0, 0, 0, fmt.Errorf("probe node %s: unexpected status %d", c.id, resp.StatusCode)
	}

	var info nodeInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return 0, 0, 0, fmt.Errorf("decode probe response: %w", err)
	}
	c.markOnline()
	return info.CapacityBytes, info.UsedSpaceBytes, info.AvailableSpaceBytes, nil
}
