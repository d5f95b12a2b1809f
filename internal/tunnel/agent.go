package tunnel

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultAgentAPI is the local control API of the tunnel agent.
const DefaultAgentAPI = "http://127.0.0.1:4040"

const agentRequestTimeout = 10 * time.Second

// startTunnelRequest is the JSON body sent to the agent to open a tunnel.
type startTunnelRequest struct {
	Name  string `json:"name"`
	Addr  string `json:"addr"`
	Proto string `json:"proto"`
}

// startTunnelResponse is the JSON body returned on successful tunnel creation.
type startTunnelResponse struct {
	Name      string `json:"name"`
	PublicURL string `json:"public_url"`
}

// agentError is the JSON body returned by the agent for structured errors.
type agentError struct {
	Msg       string `json:"msg"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// AgentClient is a Provider backed by the tunnel agent's local HTTP API.
// It keeps the table of tunnels it opened so TeardownAll can close the
// whole session without per-tunnel handles leaking to callers.
type AgentClient struct {
	apiURL string
	client *http.Client

	mu    sync.Mutex
	token string
	open  map[string]string // tunnel name -> public URL
}

// NewAgentClient creates a client for the agent API at apiURL. An empty
// apiURL selects DefaultAgentAPI.
func NewAgentClient(apiURL string) *AgentClient {
	if apiURL == "" {
		apiURL = DefaultAgentAPI
	}
	return &AgentClient{
		apiURL: apiURL,
		client: &http.Client{Timeout: agentRequestTimeout},
		open:   make(map[string]string),
	}
}

// SetAuthToken stores the provider credential. It is sent as a bearer token
// on every agent request; agents without auth enforcement ignore it.
func (c *AgentClient) SetAuthToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Connect opens a tunnel from the given local port and returns its public URL.
func (c *AgentClient) Connect(port int, protocol string) (string, error) {
	if protocol == "" {
		protocol = "http"
	}

	reqBody := startTunnelRequest{
		Name:  fmt.Sprintf("hookgate-%s", uuid.NewString()[:8]),
		Addr:  fmt.Sprintf("%d", port),
		Proto: protocol,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("encode tunnel request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.apiURL+"/api/tunnels", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build tunnel request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("tunnel agent unreachable at %s: %w", c.apiURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		err := decodeAgentError(resp)
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return "", &AuthError{Err: err}
		}
		return "", fmt.Errorf("open tunnel: %w", err)
	}

	var started startTunnelResponse
	if err := json.NewDecoder(resp.Body).Decode(&started); err != nil {
		return "", fmt.Errorf("decode tunnel response: %w", err)
	}
	if started.PublicURL == "" {
		return "", fmt.Errorf("tunnel agent returned no public URL")
	}

	name := started.Name
	if name == "" {
		name = reqBody.Name
	}

	c.mu.Lock()
	c.open[name] = started.PublicURL
	c.mu.Unlock()

	return started.PublicURL, nil
}

// TeardownAll closes every tunnel this client opened. Safe to call when no
// tunnels are open and safe to call repeatedly.
func (c *AgentClient) TeardownAll() error {
	c.mu.Lock()
	names := make([]string, 0, len(c.open))
	for name := range c.open {
		names = append(names, name)
	}
	c.open = make(map[string]string)
	c.mu.Unlock()

	var errs []error
	for _, name := range names {
		req, err := http.NewRequest(http.MethodDelete, c.apiURL+"/api/tunnels/"+name, nil)
		if err != nil {
			errs = append(errs, fmt.Errorf("build teardown request for %s: %w", name, err))
			continue
		}
		c.authorize(req)

		resp, err := c.client.Do(req)
		if err != nil {
			errs = append(errs, fmt.Errorf("teardown %s: %w", name, err))
			continue
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		// 404 means the agent already dropped the tunnel; that still
		// counts as torn down.
		if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
			errs = append(errs, fmt.Errorf("teardown %s: agent returned %d", name, resp.StatusCode))
		}
	}
	return errors.Join(errs...)
}

// Open returns the number of tunnels currently tracked by this session.
func (c *AgentClient) Open() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.open)
}

func (c *AgentClient) authorize(req *http.Request) {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func decodeAgentError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var ae agentError
	if err := json.Unmarshal(data, &ae); err == nil && ae.Msg != "" {
		return fmt.Errorf("agent returned %d: %s", resp.StatusCode, ae.Msg)
	}
	return fmt.Errorf("agent returned %d", resp.StatusCode)
}
