package api

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/raid5fs/pkg/coordinator"
	"github.com/marmos91/raid5fs/pkg/metadata"
	"github.com/marmos91/raid5fs/pkg/nodeclient"
)

// fakeNode is a minimal httptest double implementing the node HTTP
// contract, mirroring the fakes used by pkg/stripe and pkg/coordinator's
// own tests.
type fakeNode struct {
	mu     sync.Mutex
	blocks map[string][]byte
	server *httptest.Server
}

func newFakeNode() *fakeNode {
	n := &fakeNode{blocks: make(map[string][]byte)}
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
	data, err := hex.DecodeString(req.Data)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	n.mu.Lock()
	n.blocks[req.BlockID] = data
	n.mu.Unlock()
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": "stored"})
}

func (n *fakeNode) retrieve(w http.ResponseWriter, r *http.Request) {
	blockID := strings.TrimPrefix(r.URL.Path, "/retrieve/")
	n.mu.Lock()
	data, ok := n.blocks[blockID]
	n.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"block_id": blockID, "data": hex.EncodeToString(data)})
}

func (n *fakeNode) delete(w http.ResponseWriter, r *http.Request) {
	blockID := strings.TrimPrefix(r.URL.Path, "/delete/")
	n.mu.Lock()
	delete(n.blocks, blockID)
	n.mu.Unlock()
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": "deleted"})
}

func (n *fakeNode) root(w http.ResponseWriter, r *http.Request) {
	_ = json.NewEncoder(w).Encode(map[string]any{
		"message": "ok", "storage_path": "/tmp", "capacity_bytes": 1 << 20, "used_space_bytes": 0, "available_space_bytes": 1 << 20,
	})
}

func newTestRouter(t *testing.T, numNodes int) (http.Handler, []*fakeNode) {
	t.Helper()

	fakes := make([]*fakeNode, numNodes)
	clients := make([]*nodeclient.Client, numNodes)
	for i := 0; i < numNodes; i++ {
		fakes[i] = newFakeNode()
		clients[i] = nodeclient.New(nodeIDForAPI(i), fakes[i].server.URL)
	}

	meta, err := metadata.Open(t.TempDir() + "/meta.json")
	require.NoError(t, err)

	coord := coordinator.New(meta, clients, 8)
	return NewRouter(coord, nil), fakes
}

func nodeIDForAPI(i int) string {
	return "node-" + string(rune('0'+i))
}

func uploadMultipart(t *testing.T, router http.Handler, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRootReturnsHealthy(t *testing.T) {
	router, _ := newTestRouter(t, 4)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUploadThenDownloadRoundTrip(t *testing.T) {
	router, _ := newTestRouter(t, 4)

	w := uploadMultipart(t, router, "hello.txt", []byte("hello world"))
	require.Equal(t, http.StatusOK, w.Code)

	var uploaded struct {
		FileID string `json:"file_id"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&uploaded))
	require.NotEmpty(t, uploaded.FileID)

	req := httptest.NewRequest(http.MethodGet, "/download/"+uploaded.FileID, nil)
	w2 := httptest.NewRecorder()
	router.ServeHTTP(w2, req)
	require.Equal(t, http.StatusOK, w2.Code)
	assert.Contains(t, w2.Header().Get("Content-Disposition"), "hello.txt")

	body, err := io.ReadAll(w2.Body)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(body))
}

func TestUploadWithoutFileReturns400(t *testing.T) {
	router, _ := newTestRouter(t, 4)
	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(""))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDownloadUnknownFileReturns404(t *testing.T) {
	router, _ := newTestRouter(t, 4)
	req := httptest.NewRequest(http.MethodGet, "/download/does-not-exist", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteUnknownFileReturns404(t *testing.T) {
	router, _ := newTestRouter(t, 4)
	req := httptest.NewRequest(http.MethodDelete, "/files/does-not-exist", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteThenDownloadIs404(t *testing.T) {
	router, _ := newTestRouter(t, 4)

	w := uploadMultipart(t, router, "f.txt", []byte("payload"))
	require.Equal(t, http.StatusOK, w.Code)
	var uploaded struct {
		FileID string `json:"file_id"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&uploaded))

	req := httptest.NewRequest(http.MethodDelete, "/files/"+uploaded.FileID, nil)
	w2 := httptest.NewRecorder()
	router.ServeHTTP(w2, req)
	assert.Equal(t, http.StatusOK, w2.Code)

	req2 := httptest.NewRequest(http.MethodGet, "/download/"+uploaded.FileID, nil)
	w3 := httptest.NewRecorder()
	router.ServeHTTP(w3, req2)
	assert.Equal(t, http.StatusNotFound, w3.Code)
}

func TestSearchFindsUploadedFile(t *testing.T) {
	router, _ := newTestRouter(t, 4)
	w := uploadMultipart(t, router, "Report.pdf", []byte("data"))
	require.Equal(t, http.StatusOK, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/search?query=report", nil)
	w2 := httptest.NewRecorder()
	router.ServeHTTP(w2, req)
	assert.Equal(t, http.StatusOK, w2.Code)

	var out struct {
		Results []struct {
			Filename string `json:"filename"`
		} `json:"results"`
	}
	require.NoError(t, json.NewDecoder(w2.Body).Decode(&out))
	require.Len(t, out.Results, 1)
	assert.Equal(t, "Report.pdf", out.Results[0].Filename)
}

func TestStatusReportsNodeCount(t *testing.T) {
	router, _ := newTestRouter(t, 4)
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var status coordinator.SystemStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
	assert.Equal(t, 4, status.NodeCount)
	assert.Equal(t, 4, status.OnlineCount)
}

func TestStatusBlocksListsUploadedFile(t *testing.T) {
	router, _ := newTestRouter(t, 4)
	w := uploadMultipart(t, router, "a.bin", []byte("0123456789abcdef"))
	require.Equal(t, http.StatusOK, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/status/blocks", nil)
	w2 := httptest.NewRecorder()
	router.ServeHTTP(w2, req)
	require.Equal(t, http.StatusOK, w2.Code)

	var out []coordinator.FileBlockStatus
	require.NoError(t, json.NewDecoder(w2.Body).Decode(&out))
	require.Len(t, out, 1)
	assert.NotEmpty(t, out[0].Blocks)
}
