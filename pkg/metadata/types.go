// Package metadata is the coordinator's durable mapping from file-id to
// file layout, plus the global stripe counter (spec.md §4.5).
package metadata

import "time"

// BlockPlacement names the node holding one block.
type BlockPlacement struct {
	BlockID string `json:"block_id"`
	NodeID  string `json:"node_id"`
}

// StripeDescriptor is the mapping, for one stripe of one file, from each
// data-block-id to the node-id that holds it, plus the parity-block-id
// and its node-id. Data is ordered by data-index: Data[j] is the j-th
// data block of the stripe. Index is the stripe's 0-based position
// within the file (not the global stripe counter).
//
// Storing Index, Data order, and Parity explicitly here means the read
// path never needs to re-derive stripe index or block kind by parsing a
// block-id string (spec.md §9 anomaly).
type StripeDescriptor struct {
	Index  int              `json:"index"`
	Data   []BlockPlacement `json:"data"`
	Parity BlockPlacement   `json:"parity"`
}

// FileMetadata is a file's full attribute set and block layout. Blocks
// and ParityBlocks are flattened block-id -> node-id views derived from
// Stripes, present so the JSON carries the flat blocks/parity_blocks
// maps of spec.md §6's FileMetadata schema; Stripes is serialized
// alongside them and is the ordered, authoritative structure used
// internally for reconstruction and concatenation order.
type FileMetadata struct {
	FileID       string             `json:"file_id"`
	Filename     string             `json:"filename"`
	Size         int64              `json:"size"`
	UploadedAt   time.Time          `json:"uploaded_at"`
	Stripes      []StripeDescriptor `json:"stripes"`
	Blocks       map[string]string  `json:"blocks"`
	ParityBlocks map[string]string  `json:"parity_blocks"`
}

// NewFileMetadata builds a FileMetadata from an ordered stripe list,
// deriving the flattened Blocks/ParityBlocks maps.
func NewFileMetadata(fileID, filename string, size int64, uploadedAt time.Time, stripes []StripeDescriptor) *FileMetadata {
	fm := &FileMetadata{
		FileID:       fileID,
		Filename:     filename,
		Size:         size,
		UploadedAt:   uploadedAt,
		Stripes:      stripes,
		Blocks:       make(map[string]string),
		ParityBlocks: make(map[string]string),
	}
	for _, s := range stripes {
		for _, d := range s.Data {
			fm.Blocks[d.BlockID] = d.NodeID
		}
		fm.ParityBlocks[s.Parity.BlockID] = s.Parity.NodeID
	}
	return fm
}

// document is the schema of the single persisted metadata file
// (spec.md §6, "Persisted state").
type document struct {
	Files            map[string]*FileMetadata `json:"files"`
	NextStripeNumber int                      `json:"next_stripe_number"`
}
