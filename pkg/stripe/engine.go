// Package stripe implements the write and read paths of the RAID-5
// coordinator: splitting a file into stripes with rotating parity on
// write, and gathering + reconstructing blocks on read (spec.md §4.3,
// §4.4).
package stripe

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/raid5fs/internal/logger"
	"github.com/marmos91/raid5fs/internal/telemetry"
	"github.com/marmos91/raid5fs/pkg/codec"
	"github.com/marmos91/raid5fs/pkg/metadata"
	"github.com/marmos91/raid5fs/pkg/metrics"
	"github.com/marmos91/raid5fs/pkg/nodeclient"
	"github.com/marmos91/raid5fs/pkg/placement"
)

// Engine drives the stripe-level write and read paths over a fixed set
// of block-node clients and a shared metadata store.
type Engine struct {
	blockSize int
	nodes     []*nodeclient.Client // len(nodes) == N, indexed by placement node index
	meta      *metadata.Store
	metrics   *metrics.Metrics
}

// New creates a stripe engine. nodes must be given in a stable order:
// node index i is the i-th entry of this slice, and placement indices
// from pkg/placement refer to positions in it.
func New(blockSize int, nodes []*nodeclient.Client, meta *metadata.Store) *Engine {
	return &Engine{blockSize: blockSize, nodes: nodes, meta: meta}
}

// SetMetrics attaches a metrics sink. Passing a nil m leaves the engine
// uninstrumented, so this is optional.
func (e *Engine) SetMetrics(m *metrics.Metrics) {
	e.metrics = m
}

func (e *Engine) nodeCount() int { return len(e.nodes) }

func (e *Engine) payloadSize() int { return (e.nodeCount() - 1) * e.blockSize }

// Write splits content into stripes, writes a data+parity block per
// stripe to the placement-selected nodes, and commits file metadata only
// once every block write has succeeded. It returns the committed
// FileMetadata, whose FileID is the newly allocated file-id.
func (e *Engine) Write(ctx context.Context, filename string, content []byte) (fm *metadata.FileMetadata, err error) {
	ctx, span := telemetry.StartSpan(ctx, "stripe.Write")
	defer span.End()

	start := time.Now()
	defer func() {
		e.metrics.ObserveUpload(time.Since(start), err)
		telemetry.RecordError(ctx, err)
	}()

	fileID := uuid.New().String()
	payloadSize := e.payloadSize()

	numStripes := 0
	if len(content) > 0 {
		numStripes = (len(content) + payloadSize - 1) / payloadSize
	}

	stripes := make([]metadata.StripeDescriptor, 0, numStripes)
	written := make([]writtenBlock, 0, numStripes*e.nodeCount())

	for i := 0; i < numStripes; i++ {
		chunkStart := i * payloadSize
		chunkEnd := chunkStart + payloadSize
		if chunkEnd > len(content) {
			chunkEnd = len(content)
		}
		chunk := content[chunkStart:chunkEnd]

		desc, stripeWritten, werr := e.writeStripe(ctx, fileID, i, chunk)
		written = append(written, stripeWritten...)
		if werr != nil {
			e.cleanupBestEffort(fileID, written)
			err = fmt.Errorf("%w: stripe %d: %w", ErrUploadFailed, i, werr)
			return nil, err
		}
		stripes = append(stripes, *desc)
	}

	fm = metadata.NewFileMetadata(fileID, filename, int64(len(content)), time.Now().UTC(), stripes)
	if perr := e.meta.Put(fm); perr != nil {
		e.cleanupBestEffort(fileID, written)
		err = fmt.Errorf("commit metadata for file %s: %w", fileID, perr)
		return nil, err
	}

	e.metrics.SetStripeCounter(e.meta.StripeCounter())
	logger.Info("upload committed", "file_id", fileID, "filename", filename, "size", len(content), "stripes", numStripes)
	return fm, nil
}

type writtenBlock struct {
	nodeIdx int
	blockID string
}

// writeStripe computes and fans out one stripe's data+parity blocks.
func (e *Engine) writeStripe(ctx context.Context, fileID string, stripeIndex int, chunk []byte) (*metadata.StripeDescriptor, []writtenBlock, error) {
	n := e.nodeCount()
	dataBlocks := make([][]byte, n-1)
	for j := 0; j < n-1; j++ {
		start := j * e.blockSize
		end := start + e.blockSize
		if start >= len(chunk) {
			dataBlocks[j] = make([]byte, e.blockSize)
			continue
		}
		if end > len(chunk) {
			end = len(chunk)
		}
		dataBlocks[j] = codec.PadRight(chunk[start:end], e.blockSize)
	}

	parity := codec.Xor(dataBlocks...)

	s, err := e.meta.AdvanceStripeCounter()
	if err != nil {
		return nil, nil, fmt.Errorf("advance stripe counter: %w", err)
	}

	parityIdx := placement.ParityIndex(s, n)
	dataIdxs := placement.DataIndices(s, n)

	type job struct {
		nodeIdx int
		blockID string
		data    []byte
	}
	jobs := make([]job, 0, n)
	for j, nodeIdx := range dataIdxs {
		jobs = append(jobs, job{nodeIdx: nodeIdx, blockID: placement.DataBlockID(fileID, stripeIndex, j), data: dataBlocks[j]})
	}
	jobs = append(jobs, job{nodeIdx: parityIdx, blockID: placement.ParityBlockID(fileID, stripeIndex), data: parity})

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
		written  []writtenBlock
	)

	for _, j := range jobs {
		wg.Add(1)
		go func(j job) {
			defer wg.Done()

			err := e.nodes[j.nodeIdx].Store(ctx, j.blockID, j.data)
			e.metrics.RecordBlockWrite(e.nodes[j.nodeIdx].ID(), err)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("write block %s to node %s: %w", j.blockID, e.nodes[j.nodeIdx].ID(), err)
				}
				mu.Unlock()
				return
			}

			mu.Lock()
			written = append(written, writtenBlock{nodeIdx: j.nodeIdx, blockID: j.blockID})
			mu.Unlock()
		}(j)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, written, firstErr
	}

	desc := &metadata.StripeDescriptor{Index: stripeIndex}
	for j, nodeIdx := range dataIdxs {
		desc.Data = append(desc.Data, metadata.BlockPlacement{
			BlockID: placement.DataBlockID(fileID, stripeIndex, j),
			NodeID:  e.nodes[nodeIdx].ID(),
		})
	}
	desc.Parity = metadata.BlockPlacement{
		BlockID: placement.ParityBlockID(fileID, stripeIndex),
		NodeID:  e.nodes[parityIdx].ID(),
	}

	return desc, written, nil
}

// cleanupBestEffort deletes already-written blocks for a failed upload.
// Failures are logged, not propagated: spec.md §4.3 only requires the
// attempt, not guaranteed success.
func (e *Engine) cleanupBestEffort(fileID string, written []writtenBlock) {
	if len(written) == 0 {
		return
	}
	logger.Warn("cleaning up partial upload", "file_id", fileID, "blocks", len(written))

	var wg sync.WaitGroup
	for _, w := range written {
		wg.Add(1)
		go func(w writtenBlock) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := e.nodes[w.nodeIdx].Delete(ctx, w.blockID); err != nil {
				logger.Warn("best-effort cleanup delete failed", "block_id", w.blockID, "node_id", e.nodes[w.nodeIdx].ID(), "error", err)
			}
		}(w)
	}
	wg.Wait()
}

// nodeByID returns the client for nodeID, or nil if unknown. Node
// membership can change only at coordinator restart, so a linear scan
// over a handful of nodes is cheap enough not to warrant an index.
func (e *Engine) nodeByID(nodeID string) *nodeclient.Client {
	for _, c := range e.nodes {
		if c.ID() == nodeID {
			return c
		}
	}
	return nil
}

// blockResult is the outcome of retrieving one block.
type blockResult struct {
	data    []byte
	missing bool
}

func (e *Engine) retrieveBlock(ctx context.Context, nodeID, blockID string) blockResult {
	client := e.nodeByID(nodeID)
	if client == nil {
		return blockResult{missing: true}
	}

	data, err := client.Retrieve(ctx, blockID)
	if err != nil {
		// Any error here (offline, transport failure, or 404) is
		// classified as missing for reconstruction purposes (spec.md §4.4).
		return blockResult{missing: true}
	}
	return blockResult{data: data}
}

// Read loads fileID's metadata, gathers its data blocks (reconstructing
// via parity where at most one block per stripe is missing), and returns
// the original filename and byte content.
func (e *Engine) Read(ctx context.Context, fileID string) (filename string, content []byte, err error) {
	ctx, span := telemetry.StartSpan(ctx, "stripe.Read")
	defer span.End()

	start := time.Now()
	defer func() {
		e.metrics.ObserveDownload(time.Since(start), err)
		telemetry.RecordError(ctx, err)
	}()

	fm, err := e.meta.Get(fileID)
	if err != nil {
		return "", nil, err
	}

	dataResults := make([][]blockResult, len(fm.Stripes))

	var wg sync.WaitGroup
	for si, stripe := range fm.Stripes {
		dataResults[si] = make([]blockResult, len(stripe.Data))
		for di, block := range stripe.Data {
			wg.Add(1)
			go func(si, di int, block metadata.BlockPlacement) {
				defer wg.Done()
				dataResults[si][di] = e.retrieveBlock(ctx, block.NodeID, block.BlockID)
			}(si, di, block)
		}
	}
	wg.Wait()

	anyMissing := false
	for _, stripeResults := range dataResults {
		for _, r := range stripeResults {
			if r.missing {
				anyMissing = true
			}
		}
	}

	if anyMissing {
		if err := e.reconstructMissing(ctx, fm, dataResults); err != nil {
			return "", nil, err
		}
	}

	var out []byte
	for si := range fm.Stripes {
		for di := range dataResults[si] {
			out = append(out, dataResults[si][di].data...)
		}
	}
	if int64(len(out)) > fm.Size {
		out = out[:fm.Size]
	}

	return fm.Filename, out, nil
}

// reconstructMissing fills in any missing data block for stripes that
// have at most one block (data or parity) unavailable, and reports
// ErrDegradedUnrecoverable for any stripe with two or more missing.
func (e *Engine) reconstructMissing(ctx context.Context, fm *metadata.FileMetadata, dataResults [][]blockResult) error {
	for si, stripe := range fm.Stripes {
		missingData := make([]int, 0)
		for di, r := range dataResults[si] {
			if r.missing {
				missingData = append(missingData, di)
			}
		}
		if len(missingData) == 0 {
			continue
		}

		parityResult := e.retrieveBlock(ctx, stripe.Parity.NodeID, stripe.Parity.BlockID)

		missingCount := len(missingData)
		if parityResult.missing {
			missingCount++
		}
		if missingCount > 1 {
			e.metrics.RecordUnrecoverableRead()
			logger.Error("stripe unrecoverable", "file_id", fm.FileID, "stripe_index", stripe.Index, "missing_data", len(missingData), "parity_missing", parityResult.missing)
			return fmt.Errorf("%w: file %s stripe %d", ErrDegradedUnrecoverable, fm.FileID, stripe.Index)
		}

		e.metrics.RecordDegradedRead()

		missingIdx := missingData[0]
		operands := make([][]byte, 0, len(stripe.Data))
		for di, r := range dataResults[si] {
			if di == missingIdx {
				continue
			}
			operands = append(operands, r.data)
		}
		operands = append(operands, parityResult.data)

		dataResults[si][missingIdx] = blockResult{data: codec.Xor(operands...)}
		logger.Info("reconstructed block via parity", "file_id", fm.FileID, "stripe_index", stripe.Index, "data_index", missingIdx)
	}
	return nil
}
