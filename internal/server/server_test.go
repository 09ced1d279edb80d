package server_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jchantrell/slimdivers/internal/archive"
	"github.com/jchantrell/slimdivers/internal/bundle"
	"github.com/jchantrell/slimdivers/internal/catalog"
	"github.com/jchantrell/slimdivers/internal/server"
	"github.com/jchantrell/slimdivers/internal/toc"
	"github.com/jchantrell/slimdivers/internal/toc/toctest"
	"github.com/stretchr/testify/require"
)

type fakeArchive struct {
	cat   *catalog.Catalog
	tocs  map[string][]byte
	files map[string][]byte
}

func (f *fakeArchive) Classify(name string) archive.Kind {
	if _, ok := f.files[name]; ok {
		return archive.KindLegacy
	}
	return archive.KindBundled
}

func (f *fakeArchive) TOC(name string) ([]byte, error) {
	data, ok := f.tocs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", archive.ErrNotFound, name)
	}
	return data, nil
}

func (f *fakeArchive) Resource(name string, offset, size uint64) ([]byte, error) {
	data, ok := f.files[name]
	if !ok || offset+size > uint64(len(data)) {
		return nil, fmt.Errorf("%w: %s at %d", archive.ErrNotFound, name, offset)
	}
	return data[offset : offset+size], nil
}

func (f *fakeArchive) Catalog() *catalog.Catalog {
	return f.cat
}

func newServer() *server.Server {
	a := &fakeArchive{
		cat: catalog.New(1, map[string]*catalog.Package{
			"deadbeefdeadbeef": {
				Name:    "deadbeefdeadbeef",
				Size:    300,
				Entries: []catalog.Entry{{OriginalOffset: 0, StartOffset: 64}, {OriginalOffset: 100, StartOffset: 512}},
			},
		}, map[string]bundle.OffsetIndex{}),
		tocs: map[string][]byte{
			"legacy": toctest.Encode(0, toc.Header{FileID: 0xAB, TypeID: 0xCD, DataOffset: 10, DataSize: 4}),
		},
		files: map[string][]byte{
			"legacy": []byte("0123456789abcdefghij"),
		},
	}

	locs := toc.NewLocations()
	locs.Set(0xAB, toc.Location{Package: "legacy", Offset: 10, Size: 4})
	return server.New(a, locs)
}

func get(t *testing.T, s *server.Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	w := get(t, newServer(), "/health")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "ok", body["status"])
	require.Equal(t, float64(1), body["packages"])
	require.Equal(t, float64(1), body["resources"])
}

func TestGetPackage(t *testing.T) {
	s := newServer()

	w := get(t, s, "/packages/deadbeefdeadbeef")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Kind    string `json:"kind"`
		Size    uint64 `json:"size"`
		Entries []struct {
			Span   uint64 `json:"span"`
			Bundle string `json:"bundle"`
		} `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "bundled", body.Kind)
	require.Equal(t, uint64(300), body.Size)
	require.Len(t, body.Entries, 2)
	require.Equal(t, uint64(200), body.Entries[1].Span)
	require.Equal(t, "bundles.00.nxa", body.Entries[1].Bundle)

	require.Equal(t, http.StatusNotFound, get(t, s, "/packages/0000000000000000").Code)
	require.Equal(t, http.StatusOK, get(t, s, "/packages/legacy").Code)
}

func TestGetTOC(t *testing.T) {
	s := newServer()

	w := get(t, s, "/packages/legacy/toc")
	require.Equal(t, http.StatusOK, w.Code)

	var headers []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &headers))
	require.Len(t, headers, 1)
	require.Equal(t, "00000000000000ab", headers[0]["file_id"])

	raw := get(t, s, "/packages/legacy/toc?raw=1")
	require.Equal(t, "application/octet-stream", raw.Header().Get("Content-Type"))
	require.Len(t, raw.Body.Bytes(), toc.FileHeaderSize+toc.HeaderSize)

	require.Equal(t, http.StatusNotFound, get(t, s, "/packages/missing/toc").Code)
}

func TestGetResource(t *testing.T) {
	s := newServer()

	w := get(t, s, "/packages/legacy/resource?offset=2&size=3")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "234", w.Body.String())

	require.Equal(t, http.StatusBadRequest, get(t, s, "/packages/legacy/resource?offset=x").Code)
	require.Equal(t, http.StatusBadRequest, get(t, s, "/packages/legacy/resource?offset=1&size=-1").Code)
	require.Equal(t, http.StatusNotFound, get(t, s, "/packages/legacy/resource?offset=19&size=5").Code)
}

func TestResourceLocations(t *testing.T) {
	s := newServer()

	w := get(t, s, "/resources/ab")
	require.Equal(t, http.StatusOK, w.Code)
	var loc map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &loc))
	require.Equal(t, "legacy", loc["package"])

	data := get(t, s, "/resources/AB/data")
	require.Equal(t, http.StatusOK, data.Code)
	require.Equal(t, "abcd", data.Body.String())

	require.Equal(t, http.StatusNotFound, get(t, s, "/resources/ff").Code)
	require.Equal(t, http.StatusBadRequest, get(t, s, "/resources/zz").Code)
}
