package marketdata

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrSnapshotUnavailable signals that no snapshot could be obtained for a
// symbol this cycle. Callers skip evaluation rather than treating the
// condition as unsatisfied.
var ErrSnapshotUnavailable = errors.New("snapshot unavailable")

// Snapshot holds point-in-time market facts for one symbol. Snapshots are
// owned by the caller for the duration of a single evaluation pass and are
// never cached by the feed.
type Snapshot struct {
	Symbol      string          `json:"symbol"`
	LastPrice   decimal.Decimal `json:"last_price"`
	PrevClose   decimal.Decimal `json:"prev_close"`
	VolumeRatio decimal.Decimal `json:"volume_ratio"` // current volume vs trailing baseline
	Headlines   []string        `json:"headlines,omitempty"`
	AsOf        time.Time       `json:"as_of"`
}

// SnapshotFeed supplies current market facts per symbol
type SnapshotFeed interface {
	GetSnapshot(ctx context.Context, symbol string) (*Snapshot, error)
}
