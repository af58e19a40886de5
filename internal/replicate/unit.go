// Package replicate implements the per-event replication unit: the single
// state transition applied to the destination bucket and the ledger for one
// parsed change event.
package replicate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/roach88/partmirror/internal/blob"
	"github.com/roach88/partmirror/internal/event"
	"github.com/roach88/partmirror/internal/ledger"
)

// UnitParams carries everything one replication unit needs. A unit handles
// exactly one event and is discarded afterwards.
type UnitParams struct {
	Event event.ChangeEvent

	// Source reads from the origin bucket named in the event.
	Source blob.Store

	// Destination writes to DestinationBucket under the destination
	// partition's credentials.
	Destination       blob.Store
	DestinationBucket string

	// KMSKeyID, when set, encrypts uploaded objects with aws:kms.
	KMSKeyID string

	Ledger ledger.Ledger
	Logger *slog.Logger
}

// Unit applies one change event to the destination.
type Unit struct {
	p   UnitParams
	log *slog.Logger
}

// NewUnit builds a unit for the given event.
func NewUnit(p UnitParams) *Unit {
	log := p.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Unit{
		p: p,
		log: log.With(
			"key", p.Event.Key,
			"version", p.Event.Version,
			"kind", p.Event.Kind.String(),
		),
	}
}

// Run dispatches the event to its handler.
func (u *Unit) Run(ctx context.Context) error {
	switch u.p.Event.Kind {
	case event.KindCreated:
		return u.create(ctx)
	case event.KindDeleted:
		return u.delete(ctx)
	case event.KindTagsChanged:
		return u.syncTags(ctx)
	default:
		return fmt.Errorf("unhandled event kind %v", u.p.Event.Kind)
	}
}

// create copies the source object (the exact version named in the event) to
// the destination, then records the destination's resulting state in the
// ledger. Redelivery overwrites the destination object and repoints the
// ledger record at the latest copy, which keeps the operation idempotent.
func (u *Unit) create(ctx context.Context) error {
	ev := u.p.Event

	meta, err := u.p.Source.Head(ctx, ev.SourceBucket, ev.Key, ev.Version)
	if err != nil {
		return fmt.Errorf("head source object: %w", err)
	}

	tags, err := u.p.Source.Tags(ctx, ev.SourceBucket, ev.Key, ev.Version)
	if err != nil {
		return fmt.Errorf("read source tags: %w", err)
	}

	body, err := u.p.Source.Open(ctx, ev.SourceBucket, ev.Key, ev.Version)
	if err != nil {
		return fmt.Errorf("open source object: %w", err)
	}
	defer body.Close()

	// Spool to disk rather than holding the object in memory; objects can
	// be far larger than the worker's memory budget.
	spool, err := os.CreateTemp("", "partmirror-*")
	if err != nil {
		return fmt.Errorf("create spool file: %w", err)
	}
	defer func() {
		spool.Close()
		os.Remove(spool.Name())
	}()

	if _, err := io.Copy(spool, body); err != nil {
		return fmt.Errorf("spool source object: %w", err)
	}
	if _, err := spool.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind spool file: %w", err)
	}

	err = u.p.Destination.Put(ctx, u.p.DestinationBucket, ev.Key, spool, blob.PutOptions{
		Meta:     meta,
		Tags:     tags,
		KMSKeyID: u.p.KMSKeyID,
	})
	if err != nil {
		return fmt.Errorf("write destination object: %w", err)
	}

	// Read the destination's view back so the ledger holds the assigned
	// destination version and etag, not what we sent.
	dest, err := u.p.Destination.Head(ctx, u.p.DestinationBucket, ev.Key, "")
	if err != nil {
		return fmt.Errorf("head destination object: %w", err)
	}

	if err := u.p.Ledger.Put(ctx, ev.Key, ev.Version, ledger.Update{Object: &dest, Tags: &tags}); err != nil {
		return fmt.Errorf("record destination state: %w", err)
	}

	u.log.Info("object replicated",
		"destBucket", u.p.DestinationBucket,
		"destVersion", dest.VersionID,
		"bytes", dest.ContentLength,
	)
	return nil
}

// delete removes the replicated copy. The ledger record addresses the
// destination version; without a record there is nothing to remove and the
// event is complete. A destination object already gone counts as success.
// The record is dropped only after the destination delete, so a failure
// leaves the event retryable.
func (u *Unit) delete(ctx context.Context) error {
	ev := u.p.Event

	rec, err := u.p.Ledger.Get(ctx, ev.Key, ev.Version)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			u.log.Info("no replicated copy on record, nothing to delete")
			return nil
		}
		return fmt.Errorf("look up destination state: %w", err)
	}

	if ev.Version != "" && rec.Object.VersionID == "" {
		u.log.Error("ledger record has no destination version for a versioned object, skipping delete")
		return nil
	}

	err = u.p.Destination.Delete(ctx, u.p.DestinationBucket, ev.Key, rec.Object.VersionID)
	if err != nil {
		if blob.IsNotFound(err) {
			u.log.Warn("destination object already gone", "destVersion", rec.Object.VersionID)
		} else {
			return fmt.Errorf("delete destination object: %w", err)
		}
	}

	if err := u.p.Ledger.Delete(ctx, ev.Key, ev.Version); err != nil {
		return fmt.Errorf("drop destination state: %w", err)
	}

	u.log.Info("object delete replicated", "destVersion", rec.Object.VersionID)
	return nil
}

// syncTags replaces the destination copy's tag set with the source's current
// tags. The source read comes first: if the source object vanished, the
// event fails before the destination is touched.
func (u *Unit) syncTags(ctx context.Context) error {
	ev := u.p.Event

	tags, err := u.p.Source.Tags(ctx, ev.SourceBucket, ev.Key, ev.Version)
	if err != nil {
		return fmt.Errorf("read source tags: %w", err)
	}

	rec, err := u.p.Ledger.Get(ctx, ev.Key, ev.Version)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			u.log.Info("no replicated copy on record, nothing to retag")
			return nil
		}
		return fmt.Errorf("look up destination state: %w", err)
	}

	if ev.Version != "" && rec.Object.VersionID == "" {
		u.log.Error("ledger record has no destination version for a versioned object, skipping tag sync")
		return nil
	}

	if len(tags) > 0 {
		err = u.p.Destination.SetTags(ctx, u.p.DestinationBucket, ev.Key, rec.Object.VersionID, tags)
	} else {
		// An emptied tag set maps to removing the destination tagging
		// entirely, not writing an empty set.
		err = u.p.Destination.ClearTags(ctx, u.p.DestinationBucket, ev.Key, rec.Object.VersionID)
	}
	if err != nil {
		return fmt.Errorf("apply destination tags: %w", err)
	}

	if err := u.p.Ledger.Put(ctx, ev.Key, ev.Version, ledger.Update{Tags: &tags}); err != nil {
		return fmt.Errorf("record destination tags: %w", err)
	}

	u.log.Info("tags replicated", "destVersion", rec.Object.VersionID, "tagCount", len(tags))
	return nil
}
