// Command partmirror-queue-fn is the hosted batch consumer: it drains
// ordered queue batches into replication units and reports per-message
// failures so only those messages are redelivered.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/roach88/partmirror/internal/bootstrap"
	"github.com/roach88/partmirror/internal/config"
	"github.com/roach88/partmirror/internal/consumer"
	"github.com/roach88/partmirror/internal/queue"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := bootstrap.Logger(cfg)
	slog.SetDefault(log)

	var cons *consumer.Consumer

	lambda.Start(func(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
		if cons == nil {
			led, err := bootstrap.NewDynamoLedger(ctx, cfg)
			if err != nil {
				return events.SQSEventResponse{}, err
			}
			cons, err = bootstrap.NewConsumer(ctx, cfg, led, log)
			if err != nil {
				return events.SQSEventResponse{}, err
			}
		}

		msgs := make([]queue.Message, 0, len(ev.Records))
		for _, rec := range ev.Records {
			msgs = append(msgs, queue.Message{
				ID:      rec.MessageId,
				Body:    []byte(rec.Body),
				Receipt: rec.ReceiptHandle,
			})
		}

		res := cons.ProcessBatch(ctx, msgs)

		failures := make([]events.SQSBatchItemFailure, 0, len(res.BatchItemFailures))
		for _, f := range res.BatchItemFailures {
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: f.ItemIdentifier})
		}
		return events.SQSEventResponse{BatchItemFailures: failures}, nil
	})
}
