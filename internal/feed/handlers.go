package feed

import (
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// forwardTimeout bounds a single relay attempt to an internal consumer.
const forwardTimeout = 10 * time.Second

// ForwardHandler relays the payload to an internal consumer via HTTP POST.
// Delivery is synchronous on the dispatch path and best-effort: failures are
// logged, not retried.
func ForwardHandler(url string, logger *slog.Logger) Handler {
	client := &http.Client{Timeout: forwardTimeout}

	return func(body string) {
		resp, err := client.Post(url, "text/plain; charset=utf-8", strings.NewReader(body))
		if err != nil {
			logger.Error("failed to forward payload", "url", url, "error", err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			logger.Error("consumer rejected forwarded payload", "url", url, "status", resp.StatusCode)
			return
		}
		logger.Debug("payload forwarded", "url", url, "status", resp.StatusCode)
	}
}

// LogHandler records each accepted payload at INFO level. The default handler
// for feeds configured without a forward target.
func LogHandler(logger *slog.Logger) Handler {
	return func(body string) {
		logger.Info("webhook payload accepted", "bytes", len(body))
	}
}
