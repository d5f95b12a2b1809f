package webhook

import (
	"context"
	"errors"
	"net"
	"strconv"

	"github.com/mattjoyce/hookgate/internal/journal"
)

// Status is the startup handshake signal. It starts as StatusPending and
// transitions exactly once to StatusConnected or StatusFailed; the goroutine
// running the serve loop is the only writer.
type Status int32

const (
	StatusPending Status = iota
	StatusConnected
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusConnected:
		return "connected"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Config holds the webhook server's bind address.
type Config struct {
	Host string
	Port int
}

// Addr returns the host:port bind address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// DeliveryRecorder journals inbound delivery outcomes.
type DeliveryRecorder interface {
	Record(ctx context.Context, req journal.RecordRequest) (string, error)
}

// ErrStartupTimeout is returned by Start when the listener and tunnel do not
// come up within the startup budget.
var ErrStartupTimeout = errors.New("webhook server took too long to start")

// maxBodySize caps inbound payloads at 1 MB.
const maxBodySize = 1048576
