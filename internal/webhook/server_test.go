package webhook

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/hookgate/internal/feed"
	"github.com/mattjoyce/hookgate/internal/tunnel"
	"github.com/mattjoyce/hookgate/internal/tunnel/mocks"
)

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestStartConnectsAndServes(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	port := freePort(t)
	provider := mocks.NewMockProvider(ctrl)
	provider.EXPECT().Connect(port, "http").Return("https://abc123.ngrok.io", nil)
	provider.EXPECT().TeardownAll().Return(nil).AnyTimes()

	registry := feed.NewRegistry()
	require.NoError(t, registry.Subscribe("trading-view", func(string) {}, feed.AllowAll()))

	s := New(Config{Host: "127.0.0.1", Port: port}, registry, provider, nil, testLogger())
	defer s.Stop()

	require.NoError(t, s.Start())
	assert.Equal(t, StatusConnected, s.Status())
	assert.Equal(t, "https://abc123.ngrok.io/webhook", s.PublicBaseURL())
	assert.Equal(t, "https://abc123.ngrok.io/webhook/trading-view", s.SubscriptionURL("trading-view"))

	// The listener really serves: liveness probe answers.
	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/", port))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRepeatStartWhileRunningIsNoop(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	port := freePort(t)
	provider := mocks.NewMockProvider(ctrl)
	provider.EXPECT().Connect(port, "http").Return("https://abc123.ngrok.io", nil).Times(1)
	provider.EXPECT().TeardownAll().Return(nil).AnyTimes()

	s := New(Config{Host: "127.0.0.1", Port: port}, feed.NewRegistry(), provider, nil, testLogger())
	defer s.Stop()

	require.NoError(t, s.Start())
	require.NoError(t, s.Start())
}

func TestStartBindFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// Occupy the port so the bind fails.
	blocker, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer blocker.Close()
	port := blocker.Addr().(*net.TCPAddr).Port

	// The tunnel must never be attempted after a bind failure.
	provider := mocks.NewMockProvider(ctrl)

	s := New(Config{Host: "127.0.0.1", Port: port}, feed.NewRegistry(), provider, nil, testLogger())

	start := time.Now()
	err = s.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bind")
	assert.Less(t, time.Since(start), startupTimeout)
	assert.Equal(t, StatusFailed, s.Status())

	// Failed is terminal for this instance.
	assert.Error(t, s.Start())
}

func TestStartTunnelAuthFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	port := freePort(t)
	provider := mocks.NewMockProvider(ctrl)
	provider.EXPECT().Connect(port, "http").
		Return("", &tunnel.AuthError{Err: errors.New("invalid token")})

	s := New(Config{Host: "127.0.0.1", Port: port}, feed.NewRegistry(), provider, nil, testLogger())

	err := s.Start()
	require.Error(t, err)

	var authErr *tunnel.AuthError
	assert.True(t, errors.As(err, &authErr), "auth failures must stay distinguishable, got %T: %v", err, err)
	assert.Equal(t, StatusFailed, s.Status())
	assert.Empty(t, s.PublicBaseURL())
}

func TestStartTunnelGenericFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	port := freePort(t)
	provider := mocks.NewMockProvider(ctrl)
	provider.EXPECT().Connect(port, "http").Return("", errors.New("tunnel quota exceeded"))

	s := New(Config{Host: "127.0.0.1", Port: port}, feed.NewRegistry(), provider, nil, testLogger())

	err := s.Start()
	require.Error(t, err)
	assert.False(t, errors.As(err, new(*tunnel.AuthError)))
	assert.Equal(t, StatusFailed, s.Status())
}

func TestStartTimeout(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	old := startupTimeout
	startupTimeout = 50 * time.Millisecond
	defer func() { startupTimeout = old }()

	port := freePort(t)
	provider := mocks.NewMockProvider(ctrl)
	provider.EXPECT().Connect(port, "http").DoAndReturn(func(int, string) (string, error) {
		time.Sleep(200 * time.Millisecond)
		return "https://late.ngrok.io", nil
	})
	provider.EXPECT().TeardownAll().Return(nil).AnyTimes()

	s := New(Config{Host: "127.0.0.1", Port: port}, feed.NewRegistry(), provider, nil, testLogger())

	err := s.Start()
	require.ErrorIs(t, err, ErrStartupTimeout)
	assert.Equal(t, StatusFailed, s.Status())

	// Let the late serve goroutine finish rolling back before the
	// controller checks expectations.
	time.Sleep(300 * time.Millisecond)
}

func TestStopIsIdempotent(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	provider := mocks.NewMockProvider(ctrl)
	provider.EXPECT().TeardownAll().Return(nil).Times(2)

	s := New(Config{Host: "127.0.0.1", Port: freePort(t)}, feed.NewRegistry(), provider, nil, testLogger())

	// Never started: Stop must still be safe, twice.
	s.Stop()
	s.Stop()
}

func TestFreshInstanceStartsAfterStop(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	port := freePort(t)

	for i := 0; i < 2; i++ {
		provider := mocks.NewMockProvider(ctrl)
		provider.EXPECT().Connect(port, "http").Return("https://abc123.ngrok.io", nil)
		provider.EXPECT().TeardownAll().Return(nil).AnyTimes()

		s := New(Config{Host: "127.0.0.1", Port: port}, feed.NewRegistry(), provider, nil, testLogger())
		require.NoError(t, s.Start(), "round %d", i)
		s.Stop()

		// The listener must be released for the next round.
		require.Eventually(t, func() bool {
			ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
			if err != nil {
				return false
			}
			ln.Close()
			return true
		}, time.Second, 10*time.Millisecond)
	}
}

func TestStartupMessage(t *testing.T) {
	s := New(Config{Host: "127.0.0.1", Port: 8080}, feed.NewRegistry(), nil, nil, testLogger())

	msg, healthy := s.StartupMessage()
	assert.Equal(t, "Webhook configured on address: 127.0.0.1 and port: 8080", msg)
	assert.True(t, healthy)
}

func TestHealthyRequiresResolvedBind(t *testing.T) {
	s := New(Config{}, feed.NewRegistry(), nil, nil, testLogger())
	assert.False(t, s.Healthy())

	_, healthy := s.StartupMessage()
	assert.False(t, healthy)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "pending", StatusPending.String())
	assert.Equal(t, "connected", StatusConnected.String())
	assert.Equal(t, "failed", StatusFailed.String())
}
