package tunnel

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAgent emulates the tunnel agent's local control API.
type fakeAgent struct {
	mu         sync.Mutex
	authToken  string
	publicURL  string
	started    []startTunnelRequest
	deleted    []string
	lastBearer string
}

func (f *fakeAgent) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tunnels", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		f.lastBearer = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if f.authToken != "" && f.lastBearer != f.authToken {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(agentError{Msg: "authentication failed: invalid token"})
			return
		}

		var req startTunnelRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.started = append(f.started, req)

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(startTunnelResponse{
			Name:      req.Name,
			PublicURL: f.publicURL,
		})
	})
	mux.HandleFunc("/api/tunnels/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		f.mu.Lock()
		f.deleted = append(f.deleted, strings.TrimPrefix(r.URL.Path, "/api/tunnels/"))
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func TestAgentClientConnect(t *testing.T) {
	agent := &fakeAgent{publicURL: "https://abc123.ngrok.io"}
	srv := httptest.NewServer(agent.handler())
	defer srv.Close()

	c := NewAgentClient(srv.URL)
	c.SetAuthToken("tok-1")

	url, err := c.Connect(8080, "http")
	require.NoError(t, err)
	assert.Equal(t, "https://abc123.ngrok.io", url)
	assert.Equal(t, 1, c.Open())

	require.Len(t, agent.started, 1)
	assert.Equal(t, "8080", agent.started[0].Addr)
	assert.Equal(t, "http", agent.started[0].Proto)
	assert.True(t, strings.HasPrefix(agent.started[0].Name, "hookgate-"))
	assert.Equal(t, "tok-1", agent.lastBearer)
}

func TestAgentClientConnectDefaultsProtocol(t *testing.T) {
	agent := &fakeAgent{publicURL: "https://abc123.ngrok.io"}
	srv := httptest.NewServer(agent.handler())
	defer srv.Close()

	c := NewAgentClient(srv.URL)
	_, err := c.Connect(8080, "")
	require.NoError(t, err)
	assert.Equal(t, "http", agent.started[0].Proto)
}

func TestAgentClientAuthRejection(t *testing.T) {
	agent := &fakeAgent{publicURL: "https://abc123.ngrok.io", authToken: "expected"}
	srv := httptest.NewServer(agent.handler())
	defer srv.Close()

	c := NewAgentClient(srv.URL)
	c.SetAuthToken("wrong")

	_, err := c.Connect(8080, "http")
	require.Error(t, err)

	var authErr *AuthError
	assert.True(t, errors.As(err, &authErr), "expected *AuthError, got %T: %v", err, err)
	assert.Contains(t, err.Error(), "invalid token")
	assert.Equal(t, 0, c.Open())
}

func TestAgentClientUnreachable(t *testing.T) {
	c := NewAgentClient("http://127.0.0.1:1")

	_, err := c.Connect(8080, "http")
	require.Error(t, err)
	assert.False(t, errors.As(err, new(*AuthError)), "transport failure must not look like an auth failure")
}

func TestAgentClientTeardownAll(t *testing.T) {
	agent := &fakeAgent{publicURL: "https://abc123.ngrok.io"}
	srv := httptest.NewServer(agent.handler())
	defer srv.Close()

	c := NewAgentClient(srv.URL)
	_, err := c.Connect(8080, "http")
	require.NoError(t, err)
	_, err = c.Connect(8081, "http")
	require.NoError(t, err)

	require.NoError(t, c.TeardownAll())
	assert.Len(t, agent.deleted, 2)
	assert.Equal(t, 0, c.Open())

	// Idempotent: a second teardown is a no-op.
	require.NoError(t, c.TeardownAll())
	assert.Len(t, agent.deleted, 2)
}

func TestNewAgentClientDefaultURL(t *testing.T) {
	c := NewAgentClient("")
	assert.Equal(t, DefaultAgentAPI, c.apiURL)
}
