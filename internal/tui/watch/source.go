package watch

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mattjoyce/hookgate/internal/journal"
)

// Source reads delivery history. *journal.Journal satisfies it; tests supply
// a stub.
type Source interface {
	Recent(ctx context.Context, limit int) ([]*journal.Delivery, error)
	Totals(ctx context.Context) (map[journal.Outcome]int64, error)
}

// --- Message types ---

type tickMsg time.Time

type snapshotMsg struct {
	deliveries []*journal.Delivery
	totals     map[journal.Outcome]int64
}

type errMsg error

// --- Commands ---

// fetchSnapshot reads the latest deliveries and running totals in one pass.
func fetchSnapshot(src Source, limit int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		deliveries, err := src.Recent(ctx, limit)
		if err != nil {
			return errMsg(err)
		}
		totals, err := src.Totals(ctx)
		if err != nil {
			return errMsg(err)
		}
		return snapshotMsg{deliveries: deliveries, totals: totals}
	}
}
