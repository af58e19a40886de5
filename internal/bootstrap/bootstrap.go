// Package bootstrap assembles the pipeline's components from configuration.
// Both hosted entry points and the standalone worker wire the same graph:
// an ambient-credential source side and a static-credential destination side
// resolved through the credential broker.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/roach88/partmirror/internal/blob"
	"github.com/roach88/partmirror/internal/config"
	"github.com/roach88/partmirror/internal/consumer"
	"github.com/roach88/partmirror/internal/creds"
	"github.com/roach88/partmirror/internal/event"
	"github.com/roach88/partmirror/internal/ledger"
	"github.com/roach88/partmirror/internal/queue"
	"github.com/roach88/partmirror/internal/replicate"
)

// Logger builds the process logger: JSON to stderr at the configured level.
func Logger(cfg config.Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
}

// sourceAWS loads the ambient (source-partition) AWS configuration.
func sourceAWS(ctx context.Context) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return awsCfg, nil
}

// NewFilter builds the event filter publishing to the configured FIFO queue.
func NewFilter(ctx context.Context, cfg config.Config, log *slog.Logger) (*event.Filter, error) {
	if cfg.ObjectsQueue == "" {
		return nil, fmt.Errorf("OBJECTS_QUEUE is not set")
	}
	awsCfg, err := sourceAWS(ctx)
	if err != nil {
		return nil, err
	}
	pub := queue.NewSQS(sqs.NewFromConfig(awsCfg), cfg.ObjectsQueue, 0)
	return event.NewFilter(pub, log), nil
}

// NewReceiver builds the queue receiver the standalone worker polls.
func NewReceiver(ctx context.Context, cfg config.Config, waitSecs int32) (*queue.SQS, error) {
	if cfg.ObjectsQueue == "" {
		return nil, fmt.Errorf("OBJECTS_QUEUE is not set")
	}
	awsCfg, err := sourceAWS(ctx)
	if err != nil {
		return nil, err
	}
	return queue.NewSQS(sqs.NewFromConfig(awsCfg), cfg.ObjectsQueue, waitSecs), nil
}

// NewDynamoLedger builds the DynamoDB-backed ledger.
func NewDynamoLedger(ctx context.Context, cfg config.Config) (*ledger.Dynamo, error) {
	if cfg.ObjectsTable == "" {
		return nil, fmt.Errorf("OBJECTS_TABLE is not set")
	}
	awsCfg, err := sourceAWS(ctx)
	if err != nil {
		return nil, err
	}
	return ledger.NewDynamo(dynamodb.NewFromConfig(awsCfg), cfg.ObjectsTable), nil
}

// destinationOpener builds the destination store on first use and caches it.
// The broker already caches credentials; caching the store on top avoids
// reconstructing an S3 client per event.
type destinationOpener struct {
	broker *creds.Broker

	mu    sync.Mutex
	store blob.Store
}

func (o *destinationOpener) open(ctx context.Context) (blob.Store, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.store != nil {
		return o.store, nil
	}

	c, err := o.broker.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(c.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKeyID, c.SecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load destination aws config: %w", err)
	}

	o.store = blob.NewS3(s3.NewFromConfig(awsCfg))
	return o.store, nil
}

// NewConsumer assembles the batch consumer over the given ledger: ambient
// credentials on the source side, broker-resolved static credentials on the
// destination side.
func NewConsumer(ctx context.Context, cfg config.Config, led ledger.Ledger, log *slog.Logger) (*consumer.Consumer, error) {
	awsCfg, err := sourceAWS(ctx)
	if err != nil {
		return nil, err
	}

	opener := &destinationOpener{
		broker: creds.NewBroker(
			creds.NewSecretsManagerSource(secretsmanager.NewFromConfig(awsCfg), cfg.DestSecret),
			cfg.DestBucketRegion,
		),
	}

	factory := &replicate.Factory{
		Source:            blob.NewS3(s3.NewFromConfig(awsCfg)),
		Destination:       opener.open,
		Ledger:            led,
		DestinationBucket: cfg.DestBucket,
		KMSKeyID:          cfg.DestKMSKey,
		Logger:            log,
	}

	return consumer.New(consumer.ReplicatorFunc(factory.Unit), log), nil
}
