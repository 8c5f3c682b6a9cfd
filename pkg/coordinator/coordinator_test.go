package coordinator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/raid5fs/pkg/metadata"
	"github.com/marmos91/raid5fs/pkg/nodeclient"
)

type fakeNode struct {
	mu     sync.Mutex
	blocks map[string]string
	server *httptest.Server
}

func newFakeNode() *fakeNode {
	n := &fakeNode{blocks: make(map[string]string)}
	mux := http.NewServeMux()
	mux.HandleFunc("/store", n.store)
	mux.HandleFunc("/retrieve/", n.retrieve)
	mux.HandleFunc("/delete/", n.delete)
	mux.HandleFunc("/", n.root)
	n.server = httptest.NewServer(mux)
	return n
}

func (n *fakeNode) store(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BlockID string `json:"block_id"`
		Data    string `json:"data"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	n.mu.Lock()
	n.blocks[req.BlockID] = req.Data
	n.mu.Unlock()
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": "stored", "block_id": req.BlockID})
}

func (n *fakeNode) retrieve(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/retrieve/")
	n.mu.Lock()
	data, ok := n.blocks[id]
	n.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"block_id": id, "data": data})
}

func (n *fakeNode) delete(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/delete/")
	n.mu.Lock()
	delete(n.blocks, id)
	n.mu.Unlock()
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": "deleted"})
}

func (n *fakeNode) root(w http.ResponseWriter, r *http.Request) {
	n.mu.Lock()
	used := uint64(0)
	for _, v := range n.blocks {
		used += uint64(len(v))
	}
	n.mu.Unlock()
	_ = json.NewEncoder(w).Encode(map[string]any{
		"message": "ok", "storage_path": "/tmp", "capacity_bytes": uint64(1 << 30), "used_space_bytes": used, "available_space_bytes": uint64(1<<30) - used,
	})
}

func (n *fakeNode) blockCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.blocks)
}

func newTestCoordinator(t *testing.T, numNodes int) (*Coordinator, []*fakeNode) {
	t.Helper()
	fakes := make([]*fakeNode, numNodes)
	clients := make([]*nodeclient.Client, numNodes)
	for i := 0; i < numNodes; i++ {
		fakes[i] = newFakeNode()
		id := "node-" + string(rune('0'+i))
		clients[i] = nodeclient.New(id, fakes[i].server.URL)
		t.Cleanup(fakes[i].server.Close)
	}

	meta, err := metadata.Open(t.TempDir() + "/meta.json")
	require.NoError(t, err)

	return New(meta, clients, 8), fakes
}

func TestUploadDownloadRoundTrip(t *testing.T) {
	c, _ := newTestCoordinator(t, 4)
	ctx := context.Background()

	fm, err := c.Upload(ctx, "greeting.txt", []byte("hello coordinator"))
	require.NoError(t, err)

	filename, data, err := c.Download(ctx, fm.FileID)
	require.NoError(t, err)
	assert.Equal(t, "greeting.txt", filename)
	assert.Equal(t, []byte("hello coordinator"), data)
}

func TestListIsSortedByFilename(t *testing.T) {
	c, _ := newTestCoordinator(t, 4)
	ctx := context.Background()

	_, err := c.Upload(ctx, "zebra.txt", []byte("z"))
	require.NoError(t, err)
	_, err = c.Upload(ctx, "apple.txt", []byte("a"))
	require.NoError(t, err)

	files := c.List()
	require.Len(t, files, 2)
	assert.Equal(t, "apple.txt", files[0].Filename)
	assert.Equal(t, "zebra.txt", files[1].Filename)
}

func TestSearchCaseInsensitive(t *testing.T) {
	c, _ := newTestCoordinator(t, 4)
	ctx := context.Background()

	_, err := c.Upload(ctx, "Report.pdf", []byte("x"))
	require.NoError(t, err)
	_, err = c.Upload(ctx, "photo.jpg", []byte("y"))
	require.NoError(t, err)

	results := c.Search("report")
	require.Len(t, results, 1)
	assert.Equal(t, "Report.pdf", results[0].Filename)
}

func TestDeleteRemovesMetadataAndBlocks(t *testing.T) {
	c, fakes := newTestCoordinator(t, 4)
	ctx := context.Background()

	fm, err := c.Upload(ctx, "gone.txt", []byte("bye bye"))
	require.NoError(t, err)

	require.NoError(t, c.Delete(ctx, fm.FileID))

	_, _, err = c.Download(ctx, fm.FileID)
	assert.ErrorIs(t, err, metadata.ErrNotFound)

	total := 0
	for _, f := range fakes {
		total += f.blockCount()
	}
	assert.Equal(t, 0, total)
}

func TestDeleteUnknownFileReturnsNotFound(t *testing.T) {
	c, _ := newTestCoordinator(t, 4)
	err := c.Delete(context.Background(), "does-not-exist")
	assert.ErrorIs(t, err, metadata.ErrNotFound)
}

func TestSystemStatusAggregatesNodes(t *testing.T) {
	c, fakes := newTestCoordinator(t, 4)
	ctx := context.Background()

	_, err := c.Upload(ctx, "f.txt", []byte("some data here"))
	require.NoError(t, err)

	fakes[1].server.Close()

	status := c.SystemStatus(ctx)
	assert.Equal(t, 4, status.NodeCount)
	assert.Equal(t, 3, status.OnlineCount)
	assert.Equal(t, 1, status.OfflineCount)
	assert.Equal(t, 1, status.FileCount)
	assert.False(t, status.NodeLiveness["node-1"])
	assert.True(t, status.NodeLiveness["node-0"])
}

func TestBlockStatusListsEveryBlock(t *testing.T) {
	c, _ := newTestCoordinator(t, 4)
	ctx := context.Background()

	fm, err := c.Upload(ctx, "a.txt", []byte("12345678901234567890123456"))
	require.NoError(t, err)

	status := c.BlockStatus()
	require.Len(t, status, 1)
	assert.Equal(t, fm.FileID, status[0].FileID)
	// N=4 nodes, 2 stripes -> 8 blocks total (3 data + 1 parity per stripe)
	assert.Len(t, status[0].Blocks, 8)
}
