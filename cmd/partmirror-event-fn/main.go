// Command partmirror-event-fn is the hosted event filter: it receives raw
// bucket notifications, drops the ones the pipeline does not replicate, and
// enqueues the rest onto the ordered object queue.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/roach88/partmirror/internal/bootstrap"
	"github.com/roach88/partmirror/internal/config"
	"github.com/roach88/partmirror/internal/event"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := bootstrap.Logger(cfg)
	slog.SetDefault(log)

	var filter *event.Filter

	lambda.Start(func(ctx context.Context, raw json.RawMessage) error {
		if filter == nil {
			filter, err = bootstrap.NewFilter(ctx, cfg, log)
			if err != nil {
				return err
			}
		}
		_, err := filter.Handle(ctx, raw)
		return err
	})
}
