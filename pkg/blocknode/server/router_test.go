package server

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/raid5fs/pkg/blocknode"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store, err := blocknode.Open(t.TempDir(), 1<<20)
	require.NoError(t, err)
	return httptest.NewServer(NewRouter(store))
}

func TestStoreThenRetrieve(t *testing.T) {
	ts := newTestServer(t)
	defer ts.Close()

	body := `{"block_id":"f1_block_0_0","data":"` + hex.EncodeToString([]byte("hello")) + `"}`
	resp, err := http.Post(ts.URL+"/store", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/retrieve/f1_block_0_0")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		BlockID string `json:"block_id"`
		Data    string `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	decoded, err := hex.DecodeString(out.Data)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(decoded))
}

func TestRetrieveMissingBlockReturns404(t *testing.T) {
	ts := newTestServer(t)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/retrieve/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStoreRejectsBadHex(t *testing.T) {
	ts := newTestServer(t)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/store", "application/json", strings.NewReader(`{"block_id":"x","data":"not-hex!"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDeleteThenRetrieveIs404(t *testing.T) {
	ts := newTestServer(t)
	defer ts.Close()

	body := `{"block_id":"b1","data":"` + hex.EncodeToString([]byte("x")) + `"}`
	resp, err := http.Post(ts.URL+"/store", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/delete/b1", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/retrieve/b1")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteUnknownBlockReturns200(t *testing.T) {
	ts := newTestServer(t)
	defer ts.Close()

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/delete/never-existed", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRootReportsCapacity(t *testing.T) {
	ts := newTestServer(t)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var info struct {
		CapacityBytes uint64 `json:"capacity_bytes"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	assert.EqualValues(t, 1<<20, info.CapacityBytes)
}

func TestStoreFullReturns507(t *testing.T) {
	store, err := blocknode.Open(t.TempDir(), 4)
	require.NoError(t, err)
	ts := httptest.NewServer(NewRouter(store))
	defer ts.Close()

	body := `{"block_id":"big","data":"` + hex.EncodeToString([]byte("too many bytes for this node")) + `"}`
	resp, err := http.Post(ts.URL+"/store", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInsufficientStorage, resp.StatusCode)
}
