package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Table attribute names. Key and VersionId form the primary key.
const (
	attrKey       = "Key"
	attrVersionID = "VersionId"
	attrObject    = "DestObject"
	attrTags      = "DestObjectTags"
)

// DynamoAPI is the subset of the DynamoDB client used by the adapter.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// Dynamo is the DynamoDB-backed ledger used by the hosted deployment.
type Dynamo struct {
	client DynamoAPI
	table  string
}

// NewDynamo creates a ledger over the given table.
func NewDynamo(client DynamoAPI, table string) *Dynamo {
	return &Dynamo{client: client, table: table}
}

// Get returns the record for (key, version), or ErrNotFound.
func (d *Dynamo) Get(ctx context.Context, key, version string) (Record, error) {
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.table),
		Key:       d.primaryKey(key, version),
	})
	if err != nil {
		return Record{}, fmt.Errorf("ledger get %s: %w", key, err)
	}
	if len(out.Item) == 0 {
		return Record{}, fmt.Errorf("ledger get %s@%s: %w", key, StorageVersion(version), ErrNotFound)
	}

	var rec Record
	if av, ok := out.Item[attrObject]; ok {
		if err := attributevalue.Unmarshal(av, &rec.Object); err != nil {
			return Record{}, fmt.Errorf("ledger get %s: unmarshal %s: %w", key, attrObject, err)
		}
	}
	if av, ok := out.Item[attrTags]; ok {
		if err := attributevalue.Unmarshal(av, &rec.Tags); err != nil {
			return Record{}, fmt.Errorf("ledger get %s: unmarshal %s: %w", key, attrTags, err)
		}
	}
	if rec.Tags == nil {
		rec.Tags = map[string]string{}
	}
	return rec, nil
}

// Put upserts the provided fields, leaving absent fields untouched. The
// update expression only names the fields present in up, so metadata-only
// and tags-only writes never clobber the other attribute.
func (d *Dynamo) Put(ctx context.Context, key, version string, up Update) error {
	var (
		sets   []string
		names  = map[string]string{}
		values = map[string]types.AttributeValue{}
	)

	if up.Object != nil {
		av, err := attributevalue.Marshal(*up.Object)
		if err != nil {
			return fmt.Errorf("ledger put %s: marshal object: %w", key, err)
		}
		sets = append(sets, "#DO = :obj")
		names["#DO"] = attrObject
		values[":obj"] = av
	}
	if up.Tags != nil {
		av, err := attributevalue.Marshal(*up.Tags)
		if err != nil {
			return fmt.Errorf("ledger put %s: marshal tags: %w", key, err)
		}
		sets = append(sets, "#DOT = :tags")
		names["#DOT"] = attrTags
		values[":tags"] = av
	}
	if len(sets) == 0 {
		return nil
	}

	_, err := d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(d.table),
		Key:                       d.primaryKey(key, version),
		UpdateExpression:          aws.String("SET " + strings.Join(sets, ", ")),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	if err != nil {
		return fmt.Errorf("ledger put %s: %w", key, err)
	}
	return nil
}

// Delete removes the record. Deleting an absent record is not an error.
func (d *Dynamo) Delete(ctx context.Context, key, version string) error {
	_, err := d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(d.table),
		Key:       d.primaryKey(key, version),
	})
	if err != nil {
		return fmt.Errorf("ledger delete %s: %w", key, err)
	}
	return nil
}

func (d *Dynamo) primaryKey(key, version string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrKey:       &types.AttributeValueMemberS{Value: key},
		attrVersionID: &types.AttributeValueMemberS{Value: StorageVersion(version)},
	}
}
