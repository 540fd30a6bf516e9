package opensearch

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mstgnz/paybox/infra/config"
)

// fakeOpenSearch records requests and answers like a single-node cluster
type fakeOpenSearch struct {
	mu          sync.Mutex
	indexExists bool
	requests    []string
	bodies      map[string]string
	searchReply string
}

func newFakeOpenSearch(t *testing.T, indexExists bool) (*fakeOpenSearch, *httptest.Server) {
	t.Helper()
	f := &fakeOpenSearch{indexExists: indexExists, bodies: make(map[string]string)}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		key := r.Method + " " + r.URL.Path

		f.mu.Lock()
		f.requests = append(f.requests, key)
		f.bodies[key] = string(body)
		exists := f.indexExists
		reply := f.searchReply
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodHead:
			if !exists {
				w.WriteHeader(http.StatusNotFound)
			}
		case r.Method == http.MethodPut && r.URL.Path == "/"+eventIndex:
			f.mu.Lock()
			f.indexExists = true
			f.mu.Unlock()
			_, _ = io.WriteString(w, `{"acknowledged":true}`)
		case strings.HasSuffix(r.URL.Path, "/_search"):
			_, _ = io.WriteString(w, reply)
		case strings.Contains(r.URL.Path, "/_doc/"):
			w.WriteHeader(http.StatusCreated)
			_, _ = io.WriteString(w, `{"result":"created"}`)
		default:
			_, _ = io.WriteString(w, `{"version":{"number":"2.11.0","distribution":"opensearch"}}`)
		}
	}))
	t.Cleanup(server.Close)
	return f, server
}

func (f *fakeOpenSearch) seen(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.requests {
		if r == key {
			return true
		}
	}
	return false
}

func (f *fakeOpenSearch) body(key string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bodies[key]
}

func TestNewClient_CreatesIndexWhenMissing(t *testing.T) {
	fake, server := newFakeOpenSearch(t, false)

	client, err := NewClient(&config.AppConfig{OpenSearchURL: server.URL, EnableLogging: true})
	require.NoError(t, err)

	assert.True(t, client.IsEnabled())
	assert.Equal(t, "paybox-payment-events", client.IndexName())
	assert.True(t, fake.seen("PUT /"+eventIndex))

	var mapping map[string]any
	require.NoError(t, json.Unmarshal([]byte(fake.body("PUT /"+eventIndex)), &mapping))
	assert.Contains(t, mapping, "mappings")
}

func TestNewClient_ExistingIndex(t *testing.T) {
	fake, server := newFakeOpenSearch(t, true)

	_, err := NewClient(&config.AppConfig{OpenSearchURL: server.URL, EnableLogging: true})
	require.NoError(t, err)

	assert.False(t, fake.seen("PUT /"+eventIndex))
}

func TestNewClient_DisabledSkipsSetup(t *testing.T) {
	fake, server := newFakeOpenSearch(t, false)

	client, err := NewClient(&config.AppConfig{OpenSearchURL: server.URL})
	require.NoError(t, err)

	assert.False(t, client.IsEnabled())
	assert.NotNil(t, client.GetClient())
	assert.Empty(t, fake.requests)
}
