package replicate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/partmirror/internal/blob"
	"github.com/roach88/partmirror/internal/event"
	"github.com/roach88/partmirror/internal/ledger"
)

// Factory builds replication units around shared collaborators. The
// destination store is opened through a function so its credentials are
// resolved on first use rather than at startup; openers are expected to
// cache, so repeated calls are cheap.
type Factory struct {
	Source            blob.Store
	Destination       func(ctx context.Context) (blob.Store, error)
	Ledger            ledger.Ledger
	DestinationBucket string
	KMSKeyID          string
	Logger            *slog.Logger
}

// Unit runs a fresh replication unit for ev.
func (f *Factory) Unit(ctx context.Context, ev event.ChangeEvent) error {
	dest, err := f.Destination(ctx)
	if err != nil {
		return fmt.Errorf("open destination store: %w", err)
	}

	return NewUnit(UnitParams{
		Event:             ev,
		Source:            f.Source,
		Destination:       dest,
		DestinationBucket: f.DestinationBucket,
		KMSKeyID:          f.KMSKeyID,
		Ledger:            f.Ledger,
		Logger:            f.Logger,
	}).Run(ctx)
}
