package queue

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/google/uuid"
)

// SQSAPI is the subset of the SQS client used by the adapter.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// SQS adapts an SQS FIFO queue to the Publisher and Receiver contracts.
//
// MessageGroupId carries the ordering key, so SQS enforces per-group
// publication order and single in-flight delivery per group. Release is a
// no-op: an unacknowledged message reappears after its visibility timeout.
type SQS struct {
	client   SQSAPI
	queueURL string
	waitSecs int32
}

// NewSQS creates an adapter for the FIFO queue at queueURL.
func NewSQS(client SQSAPI, queueURL string, waitSecs int32) *SQS {
	return &SQS{client: client, queueURL: queueURL, waitSecs: waitSecs}
}

// Publish sends body with the group ID as MessageGroupId.
//
// The deduplication ID is a fresh UUID per publish: two notifications with
// identical bodies (e.g. create, delete, create again for the same key) are
// distinct events and must all be delivered.
func (s *SQS) Publish(ctx context.Context, groupID string, body []byte) (string, error) {
	out, err := s.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:               aws.String(s.queueURL),
		MessageBody:            aws.String(string(body)),
		MessageGroupId:         aws.String(groupID),
		MessageDeduplicationId: aws.String(uuid.NewString()),
	})
	if err != nil {
		return "", fmt.Errorf("sqs send message: %w", err)
	}
	return aws.ToString(out.MessageId), nil
}

// Receive long-polls for up to max messages.
func (s *SQS) Receive(ctx context.Context, max int) ([]Message, error) {
	if max > 10 {
		max = 10 // SQS batch ceiling
	}
	out, err := s.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(s.queueURL),
		MaxNumberOfMessages: int32(max),
		WaitTimeSeconds:     s.waitSecs,
	})
	if err != nil {
		return nil, fmt.Errorf("sqs receive message: %w", err)
	}

	msgs := make([]Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		msgs = append(msgs, Message{
			ID:      aws.ToString(m.MessageId),
			Body:    []byte(aws.ToString(m.Body)),
			Receipt: aws.ToString(m.ReceiptHandle),
		})
	}
	return msgs, nil
}

// Delete acknowledges a message by receipt handle.
func (s *SQS) Delete(ctx context.Context, m Message) error {
	_, err := s.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(s.queueURL),
		ReceiptHandle: aws.String(m.Receipt),
	})
	if err != nil {
		return fmt.Errorf("sqs delete message %s: %w", m.ID, err)
	}
	return nil
}

// Release is a no-op; SQS redelivers after the visibility timeout expires.
func (s *SQS) Release(context.Context, Message) error {
	return nil
}
