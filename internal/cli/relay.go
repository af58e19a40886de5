package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/partmirror/internal/blob"
	"github.com/roach88/partmirror/internal/bootstrap"
	"github.com/roach88/partmirror/internal/config"
	"github.com/roach88/partmirror/internal/consumer"
	"github.com/roach88/partmirror/internal/event"
	"github.com/roach88/partmirror/internal/ledger"
	"github.com/roach88/partmirror/internal/queue"
	"github.com/roach88/partmirror/internal/replicate"
)

// RelayOptions holds flags for the relay command.
type RelayOptions struct {
	*RootOptions
	DryRun     bool
	ObjectsDir string
	Database   string
	DestBucket string
}

// NewRelayCommand creates the relay command.
func NewRelayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RelayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "relay [file...]",
		Short: "Replay archived notifications through the pipeline",
		Long: `Feed notification documents through the filter and consumer in one pass.

Notifications are read from the given files (or stdin) as a stream of JSON
documents, filtered into an in-memory ordered queue, and drained by the
consumer. With --dry-run the pipeline runs entirely against in-memory
buckets seeded from --objects, so a notification archive can be replayed
without touching any cloud resource.

Example:
  partmirror relay events.json
  partmirror relay --dry-run --objects ./fixtures events.json
  cat archive.json | partmirror relay --db relay.db`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRelay(cmd, opts, args)
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "replicate into in-memory buckets instead of the cloud")
	cmd.Flags().StringVar(&opts.ObjectsDir, "objects", "", "directory seeding source objects for --dry-run")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite ledger (dry-run defaults to a throwaway file)")
	cmd.Flags().StringVar(&opts.DestBucket, "dest-bucket", "mirror", "destination bucket name for --dry-run")

	return cmd
}

func runRelay(cmd *cobra.Command, opts *RelayOptions, args []string) error {
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: logLevel}))

	docs, err := readNotifications(cmd, args)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read notifications", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	q := queue.NewMemory()
	filter := event.NewFilter(q, log)

	var accepted, dropped, malformed int
	for _, raw := range docs {
		id, err := filter.Handle(ctx, raw)
		switch {
		case err != nil:
			log.Error("notification rejected", "error", err)
			malformed++
		case id == "":
			dropped++
		default:
			accepted++
		}
	}

	cons, cleanup, err := relayConsumer(ctx, opts, log)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build consumer", err)
	}
	defer cleanup()

	failed, err := drain(ctx, q, cons)
	if err != nil {
		return WrapExitError(ExitFailure, "relay error", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "relayed %d notifications: %d replicated, %d failed, %d dropped, %d malformed\n",
		len(docs), accepted-failed, failed, dropped, malformed)

	if failed > 0 || malformed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d notifications did not replicate", failed+malformed))
	}
	return nil
}

// drain empties the in-memory queue through the consumer. Failed messages
// are acknowledged rather than released: a relay is a single pass, not a
// retry loop.
func drain(ctx context.Context, q *queue.Memory, cons *consumer.Consumer) (int, error) {
	var failed int
	for {
		msgs, err := q.Receive(ctx, 10)
		if err != nil {
			return failed, fmt.Errorf("receive batch: %w", err)
		}
		if len(msgs) == 0 {
			return failed, nil
		}

		res := cons.ProcessBatch(ctx, msgs)
		for _, msg := range msgs {
			if res.Failed(msg.ID) {
				failed++
			}
			if err := q.Delete(ctx, msg); err != nil {
				return failed, fmt.Errorf("acknowledge message %s: %w", msg.ID, err)
			}
		}
	}
}

// relayConsumer builds either the in-memory dry-run consumer or the real one.
func relayConsumer(ctx context.Context, opts *RelayOptions, log *slog.Logger) (*consumer.Consumer, func(), error) {
	if opts.DryRun {
		return dryRunConsumer(opts, log)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load environment: %w", err)
	}

	var (
		led     ledger.Ledger
		cleanup = func() {}
	)
	if opts.Database != "" {
		sq, err := ledger.OpenSQLite(opts.Database)
		if err != nil {
			return nil, nil, err
		}
		led = sq
		cleanup = func() { sq.Close() }
	} else {
		led, err = bootstrap.NewDynamoLedger(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
	}

	cons, err := bootstrap.NewConsumer(ctx, cfg, led, log)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return cons, cleanup, nil
}

// dryRunConsumer wires the pipeline against in-memory buckets: the source is
// seeded from --objects, the destination starts empty, and the ledger is a
// throwaway SQLite file unless --db names one.
func dryRunConsumer(opts *RelayOptions, log *slog.Logger) (*consumer.Consumer, func(), error) {
	src := blob.NewMemory()
	if opts.ObjectsDir != "" {
		if err := seedFromDir(src, opts.ObjectsDir); err != nil {
			return nil, nil, fmt.Errorf("seed source objects: %w", err)
		}
	}

	dst := blob.NewMemory()
	dst.CreateBucket(opts.DestBucket, true)

	dbPath := opts.Database
	cleanup := func() {}
	if dbPath == "" {
		dir, err := os.MkdirTemp("", "partmirror-relay-*")
		if err != nil {
			return nil, nil, err
		}
		dbPath = filepath.Join(dir, "ledger.db")
		cleanup = func() { os.RemoveAll(dir) }
	}
	led, err := ledger.OpenSQLite(dbPath)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	prev := cleanup
	cleanup = func() {
		led.Close()
		prev()
	}

	factory := &replicate.Factory{
		Source:            src,
		Destination:       func(context.Context) (blob.Store, error) { return dst, nil },
		Ledger:            led,
		DestinationBucket: opts.DestBucket,
		Logger:            log,
	}
	return consumer.New(consumer.ReplicatorFunc(factory.Unit), log), cleanup, nil
}

// seedFromDir loads every file under dir into the seed bucket, keyed by its
// relative path. Notifications replayed in dry-run mode should name
// relaySeedBucket as their source bucket.
func seedFromDir(m *blob.Memory, dir string) error {
	m.CreateBucket(relaySeedBucket, false)
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		m.SeedObject(relaySeedBucket, filepath.ToSlash(rel), "", data, blob.ObjectMeta{}, nil)
		return nil
	})
}

// relaySeedBucket is the bucket name dry-run notifications should carry.
const relaySeedBucket = "relay-source"

// readNotifications decodes a stream of JSON documents from the named files,
// or stdin when none are given. NDJSON and concatenated documents both work.
func readNotifications(cmd *cobra.Command, args []string) ([][]byte, error) {
	var docs [][]byte

	readFrom := func(r io.Reader) error {
		dec := json.NewDecoder(r)
		for {
			var raw json.RawMessage
			if err := dec.Decode(&raw); err != nil {
				if errors.Is(err, io.EOF) {
					return nil
				}
				return err
			}
			docs = append(docs, []byte(raw))
		}
	}

	if len(args) == 0 {
		if err := readFrom(cmd.InOrStdin()); err != nil {
			return nil, fmt.Errorf("stdin: %w", err)
		}
		return docs, nil
	}

	for _, path := range args {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		err = readFrom(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return docs, nil
}
