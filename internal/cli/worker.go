package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/partmirror/internal/bootstrap"
	"github.com/roach88/partmirror/internal/config"
	"github.com/roach88/partmirror/internal/consumer"
	"github.com/roach88/partmirror/internal/ledger"
	"github.com/roach88/partmirror/internal/queue"
)

// WorkerOptions holds flags for the worker command.
type WorkerOptions struct {
	*RootOptions
	ConfigPath string
}

// NewWorkerCommand creates the worker command.
func NewWorkerCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WorkerOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Poll the object queue and replicate continuously",
		Long: `Run the replication pipeline as a long-lived process.

The worker polls the ordered object queue, replicates each change to the
destination bucket, acknowledges successes and releases failures for
redelivery. Bucket, queue and credential settings come from the environment;
ledger backend and polling behavior come from the config file.

Example:
  partmirror worker --config worker.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.ConfigPath, "config", "worker.yaml", "path to worker config file")

	return cmd
}

func runWorker(cmd *cobra.Command, opts *WorkerOptions) error {
	cfg, err := config.Load()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load environment", err)
	}
	if opts.Verbose {
		cfg.LogLevel = "DEBUG"
	}
	log := bootstrap.Logger(cfg)

	wf, err := config.LoadWorkerFile(opts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load worker config", err)
	}

	ctx, cancel := signalContext(cmd.Context(), log)
	defer cancel()

	led, closeLedger, err := openLedger(ctx, cfg, wf)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open ledger", err)
	}
	defer func() {
		if closeErr := closeLedger(); closeErr != nil {
			log.Error("error closing ledger", "error", closeErr)
		}
	}()

	recv, err := bootstrap.NewReceiver(ctx, cfg, int32(wf.Poll.WaitSeconds))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build queue receiver", err)
	}

	cons, err := bootstrap.NewConsumer(ctx, cfg, led, log)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build consumer", err)
	}

	log.Info("worker starting",
		"destBucket", cfg.DestBucket,
		"queue", cfg.ObjectsQueue,
		"ledger", wf.Ledger.Backend,
	)
	fmt.Fprintln(cmd.OutOrStdout(), "Worker started. Press Ctrl-C to stop.")

	if err := poll(ctx, recv, cons, wf.Poll.BatchSize, log); err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "worker error", err)
	}

	log.Info("worker stopped gracefully")
	return nil
}

// poll drains the queue until ctx is cancelled. Successes are acknowledged;
// failures are released for redelivery so ordering holds per key.
func poll(ctx context.Context, recv queue.Receiver, cons *consumer.Consumer, batchSize int, log *slog.Logger) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msgs, err := recv.Receive(ctx, batchSize)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			return fmt.Errorf("receive batch: %w", err)
		}
		if len(msgs) == 0 {
			continue
		}

		res := cons.ProcessBatch(ctx, msgs)
		for _, msg := range msgs {
			if res.Failed(msg.ID) {
				if err := recv.Release(ctx, msg); err != nil {
					log.Error("failed to release message", "messageId", msg.ID, "error", err)
				}
				continue
			}
			if err := recv.Delete(ctx, msg); err != nil {
				log.Error("failed to acknowledge message", "messageId", msg.ID, "error", err)
			}
		}
	}
}

// openLedger opens the backend named in the worker file.
func openLedger(ctx context.Context, cfg config.Config, wf config.WorkerFile) (ledger.Ledger, func() error, error) {
	switch wf.Ledger.Backend {
	case "sqlite":
		led, err := ledger.OpenSQLite(wf.Ledger.Path)
		if err != nil {
			return nil, nil, err
		}
		return led, led.Close, nil
	case "dynamodb":
		led, err := bootstrap.NewDynamoLedger(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return led, func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown ledger backend %q", wf.Ledger.Backend)
	}
}

// signalContext derives a context cancelled on SIGINT/SIGTERM.
func signalContext(parent context.Context, log *slog.Logger) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			log.Info("received signal, shutting down", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
