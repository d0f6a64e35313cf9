package testsupport

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// FakeHub is an in-memory model hub serving resolve/main downloads and plain
// files over HTTP.
type FakeHub struct {
	Server *httptest.Server

	mu       sync.Mutex
	files    map[string][]byte
	failures map[string][]int
	requests map[string]int
	commit   string
}

// NewFakeHub starts a hub that is shut down when the test ends.
func NewFakeHub(t testing.TB) *FakeHub {
	t.Helper()
	h := &FakeHub{
		files:    make(map[string][]byte),
		failures: make(map[string][]int),
		requests: make(map[string]int),
		commit:   strings.Repeat("c0ffee", 6) + "c0ff",
	}
	h.Server = httptest.NewServer(http.HandlerFunc(h.serve))
	t.Cleanup(h.Server.Close)
	return h
}

// URL returns the hub base URL.
func (h *FakeHub) URL() string { return h.Server.URL }

// Commit returns the revision every repository reports for main.
func (h *FakeHub) Commit() string { return h.commit }

// AddModel serves content as repoID/filename at revision main.
func (h *FakeHub) AddModel(repoID, filename string, content []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.files["/"+repoID+"/resolve/main/"+filename] = content
}

// AddFile serves content at path and returns its absolute URL.
func (h *FakeHub) AddFile(path string, content []byte) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.files[path] = content
	return h.Server.URL + path
}

// FailNext makes the next requests for path answer with the given statuses.
func (h *FakeHub) FailNext(path string, codes ...int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failures[path] = append(h.failures[path], codes...)
}

// Requests reports how many GET requests path received.
func (h *FakeHub) Requests(path string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.requests[path]
}

func (h *FakeHub) serve(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if r.Method == http.MethodGet {
		h.requests[r.URL.Path]++
	}
	var code int
	if queue := h.failures[r.URL.Path]; len(queue) > 0 {
		code = queue[0]
		h.failures[r.URL.Path] = queue[1:]
	}
	content, ok := h.files[r.URL.Path]
	h.mu.Unlock()

	if code != 0 {
		w.WriteHeader(code)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	if strings.Contains(r.URL.Path, "/resolve/main/") {
		sum := sha256.Sum256(content)
		w.Header().Set("X-Repo-Commit", h.commit)
		w.Header().Set("ETag", `"`+hex.EncodeToString(sum[:])+`"`)
	}
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(content)
}
