// Package coordinator wires the metadata store, stripe engine, and node
// clients into the single orchestration object the HTTP API talks to
// (spec.md §4.7, §4.8).
package coordinator

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/marmos91/raid5fs/internal/logger"
	"github.com/marmos91/raid5fs/pkg/metadata"
	"github.com/marmos91/raid5fs/pkg/metrics"
	"github.com/marmos91/raid5fs/pkg/nodeclient"
	"github.com/marmos91/raid5fs/pkg/stripe"
)

// Coordinator is the RAID-5 coordinator: the single object that owns the
// node clients, the stripe engine, and the metadata store, and exposes
// the operations the HTTP surface needs.
type Coordinator struct {
	nodes   []*nodeclient.Client
	meta    *metadata.Store
	eng     *stripe.Engine
	metrics *metrics.Metrics
}

// New creates a Coordinator over an already-opened metadata store and a
// fixed, ordered list of node clients.
func New(meta *metadata.Store, nodes []*nodeclient.Client, blockSize int) *Coordinator {
	return &Coordinator{
		nodes: nodes,
		meta:  meta,
		eng:   stripe.New(blockSize, nodes, meta),
	}
}

// SetMetrics attaches a metrics sink to both the coordinator and its
// stripe engine. A nil m is a safe no-op.
func (c *Coordinator) SetMetrics(m *metrics.Metrics) {
	c.metrics = m
	c.eng.SetMetrics(m)
}

// Upload stripes content across the node cluster and commits its
// metadata. Returns the committed FileMetadata.
func (c *Coordinator) Upload(ctx context.Context, filename string, content []byte) (*metadata.FileMetadata, error) {
	return c.eng.Write(ctx, filename, content)
}

// Download reconstructs and returns a file's full content, its filename,
// and any read error (metadata.ErrNotFound, stripe.ErrDegradedUnrecoverable).
func (c *Coordinator) Download(ctx context.Context, fileID string) (filename string, content []byte, err error) {
	return c.eng.Read(ctx, fileID)
}

// List returns every known file's metadata, sorted by filename for
// stable output.
func (c *Coordinator) List() []*metadata.FileMetadata {
	files := c.meta.List()
	sort.Slice(files, func(i, j int) bool { return files[i].Filename < files[j].Filename })
	return files
}

// Search returns files whose filename contains query, case-insensitive,
// sorted by filename.
func (c *Coordinator) Search(query string) []*metadata.FileMetadata {
	files := c.meta.Search(query)
	sort.Slice(files, func(i, j int) bool { return files[i].Filename < files[j].Filename })
	return files
}

// Delete removes a file's metadata and best-effort deletes its blocks
// from every node that holds one. Returns metadata.ErrNotFound if the
// file is unknown.
func (c *Coordinator) Delete(ctx context.Context, fileID string) error {
	fm, err := c.meta.Get(fileID)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	for _, stripeDesc := range fm.Stripes {
		for _, d := range stripeDesc.Data {
			wg.Add(1)
			go func(nodeID, blockID string) {
				defer wg.Done()
				c.deleteBlock(ctx, nodeID, blockID)
			}(d.NodeID, d.BlockID)
		}
		wg.Add(1)
		go func(nodeID, blockID string) {
			defer wg.Done()
			c.deleteBlock(ctx, nodeID, blockID)
		}(stripeDesc.Parity.NodeID, stripeDesc.Parity.BlockID)
	}
	wg.Wait()

	if err := c.meta.Delete(fileID); err != nil {
		return fmt.Errorf("delete metadata for file %s: %w", fileID, err)
	}
	return nil
}

func (c *Coordinator) deleteBlock(ctx context.Context, nodeID, blockID string) {
	client := c.nodeByID(nodeID)
	if client == nil {
		return
	}
	if err := client.Delete(ctx, blockID); err != nil {
		logger.Warn("delete block failed", "node_id", nodeID, "block_id", blockID, "error", err)
	}
}

func (c *Coordinator) nodeByID(nodeID string) *nodeclient.Client {
	for _, n := range c.nodes {
		if n.ID() == nodeID {
			return n
		}
	}
	return nil
}

// SystemStatus aggregates node liveness and capacity, per spec.md §4.8.
type SystemStatus struct {
	NodeCount            int             `json:"node_count"`
	OnlineCount          int             `json:"online_count"`
	OfflineCount         int             `json:"offline_count"`
	TotalCapacityBytes   uint64          `json:"total_capacity_bytes"`
	TotalUsedBytes       uint64          `json:"total_used_bytes"`
	TotalAvailableBytes  uint64          `json:"total_available_bytes"`
	StripeCounter        int             `json:"stripe_counter"`
	FileCount            int             `json:"file_count"`
	NodeLiveness         map[string]bool `json:"node_liveness"`
}

// SystemStatus probes every node (to rehabilitate any that have come back
// online) and aggregates cluster-wide health and capacity.
func (c *Coordinator) SystemStatus(ctx context.Context) SystemStatus {
	status := SystemStatus{
		NodeCount:    len(c.nodes),
		StripeCounter: c.meta.StripeCounter(),
		FileCount:    len(c.meta.List()),
		NodeLiveness: make(map[string]bool, len(c.nodes)),
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	for _, n := range c.nodes {
		wg.Add(1)
		go func(n *nodeclient.Client) {
			defer wg.Done()
			capacity, used, available, err := n.Probe(ctx)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				status.NodeLiveness[n.ID()] = false
				c.metrics.SetNodeLiveness(n.ID(), false)
				return
			}
			status.NodeLiveness[n.ID()] = true
			status.TotalCapacityBytes += capacity
			status.TotalUsedBytes += used
			status.TotalAvailableBytes += available
			c.metrics.SetNodeLiveness(n.ID(), true)
		}(n)
	}
	wg.Wait()

	for _, online := range status.NodeLiveness {
		if online {
			status.OnlineCount++
		} else {
			status.OfflineCount++
		}
	}
	return status
}

// BlockPlacement is one block's placement for FileBlockStatus.
type BlockPlacement struct {
	BlockID string `json:"block_id"`
	NodeID  string `json:"node_id"`
	Kind    string `json:"kind"` // "data" or "parity"
}

// FileBlockStatus enumerates a single file's full per-block placement,
// per spec.md §4.8.
type FileBlockStatus struct {
	FileID   string           `json:"file_id"`
	Filename string           `json:"filename"`
	Blocks   []BlockPlacement `json:"blocks"`
}

// BlockStatus enumerates every file with its full per-block placement,
// sorted by filename then by block-id for stable output.
func (c *Coordinator) BlockStatus() []FileBlockStatus {
	files := c.meta.List()
	sort.Slice(files, func(i, j int) bool { return files[i].Filename < files[j].Filename })

	out := make([]FileBlockStatus, 0, len(files))
	for _, fm := range files {
		fbs := FileBlockStatus{FileID: fm.FileID, Filename: fm.Filename}
		for _, s := range fm.Stripes {
			for _, d := range s.Data {
				fbs.Blocks = append(fbs.Blocks, BlockPlacement{BlockID: d.BlockID, NodeID: d.NodeID, Kind: "data"})
			}
			fbs.Blocks = append(fbs.Blocks, BlockPlacement{BlockID: s.Parity.BlockID, NodeID: s.Parity.NodeID, Kind: "parity"})
		}
		sort.Slice(fbs.Blocks, func(i, j int) bool { return fbs.Blocks[i].BlockID < fbs.Blocks[j].BlockID })
		out = append(out, fbs)
	}
	return out
}
