package ledger

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/partmirror/internal/blob"
)

type fakeDynamo struct {
	getOut     *dynamodb.GetItemOutput
	lastUpdate *dynamodb.UpdateItemInput
	lastDelete *dynamodb.DeleteItemInput
	lastGet    *dynamodb.GetItemInput
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.lastGet = in
	if f.getOut == nil {
		return &dynamodb.GetItemOutput{}, nil
	}
	return f.getOut, nil
}

func (f *fakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.lastUpdate = in
	return &dynamodb.UpdateItemOutput{}, nil
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.lastDelete = in
	return &dynamodb.DeleteItemOutput{}, nil
}

func TestDynamo_GetMissing(t *testing.T) {
	fake := &fakeDynamo{}
	led := NewDynamo(fake, "objects")

	_, err := led.Get(context.Background(), "a.txt", "v1")
	assert.ErrorIs(t, err, ErrNotFound)

	key := fake.lastGet.Key
	assert.Equal(t, &types.AttributeValueMemberS{Value: "a.txt"}, key["Key"])
	assert.Equal(t, &types.AttributeValueMemberS{Value: "v1"}, key["VersionId"])
}

func TestDynamo_GetUsesSentinelForUnversioned(t *testing.T) {
	fake := &fakeDynamo{}
	led := NewDynamo(fake, "objects")

	_, _ = led.Get(context.Background(), "a.txt", "")
	assert.Equal(t, &types.AttributeValueMemberS{Value: SentinelVersion}, fake.lastGet.Key["VersionId"])
}

func TestDynamo_PutBothFields(t *testing.T) {
	fake := &fakeDynamo{}
	led := NewDynamo(fake, "objects")

	meta := blob.ObjectMeta{VersionID: "dst-v1"}
	tags := map[string]string{"env": "prod"}
	require.NoError(t, led.Put(context.Background(), "a.txt", "v1", Update{Object: &meta, Tags: &tags}))

	in := fake.lastUpdate
	require.NotNil(t, in)
	assert.Equal(t, "objects", aws.ToString(in.TableName))
	assert.Equal(t, "SET #DO = :obj, #DOT = :tags", aws.ToString(in.UpdateExpression))
	assert.Equal(t, "DestObject", in.ExpressionAttributeNames["#DO"])
	assert.Equal(t, "DestObjectTags", in.ExpressionAttributeNames["#DOT"])
}

func TestDynamo_PutTagsOnlyNamesOneField(t *testing.T) {
	fake := &fakeDynamo{}
	led := NewDynamo(fake, "objects")

	tags := map[string]string{"env": "prod"}
	require.NoError(t, led.Put(context.Background(), "a.txt", "v1", Update{Tags: &tags}))

	in := fake.lastUpdate
	require.NotNil(t, in)
	assert.Equal(t, "SET #DOT = :tags", aws.ToString(in.UpdateExpression))
	assert.NotContains(t, in.ExpressionAttributeNames, "#DO")
}

func TestDynamo_PutEmptyUpdateIsNoOp(t *testing.T) {
	fake := &fakeDynamo{}
	led := NewDynamo(fake, "objects")

	require.NoError(t, led.Put(context.Background(), "a.txt", "v1", Update{}))
	assert.Nil(t, fake.lastUpdate, "no write issued for an update naming no fields")
}

func TestDynamo_GetRoundTrip(t *testing.T) {
	fake := &fakeDynamo{
		getOut: &dynamodb.GetItemOutput{
			Item: map[string]types.AttributeValue{
				"Key":       &types.AttributeValueMemberS{Value: "a.txt"},
				"VersionId": &types.AttributeValueMemberS{Value: "v1"},
				"DestObject": &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
					"VersionID": &types.AttributeValueMemberS{Value: "dst-v1"},
				}},
				"DestObjectTags": &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
					"env": &types.AttributeValueMemberS{Value: "prod"},
				}},
			},
		},
	}
	led := NewDynamo(fake, "objects")

	rec, err := led.Get(context.Background(), "a.txt", "v1")
	require.NoError(t, err)
	assert.Equal(t, "dst-v1", rec.Object.VersionID)
	assert.Equal(t, map[string]string{"env": "prod"}, rec.Tags)
}

func TestDynamo_Delete(t *testing.T) {
	fake := &fakeDynamo{}
	led := NewDynamo(fake, "objects")

	require.NoError(t, led.Delete(context.Background(), "a.txt", ""))
	assert.Equal(t, &types.AttributeValueMemberS{Value: SentinelVersion}, fake.lastDelete.Key["VersionId"])
}
