package blob

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubS3 struct {
	S3API
	headErr error
	lastPut *s3.PutObjectInput
}

func (s *stubS3) HeadObject(_ context.Context, _ *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if s.headErr != nil {
		return nil, s.headErr
	}
	return &s3.HeadObjectOutput{}, nil
}

func (s *stubS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	s.lastPut = in
	return &s3.PutObjectOutput{}, nil
}

func TestIsAPINotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "modeled NoSuchKey", err: &types.NoSuchKey{}, want: true},
		{name: "modeled NotFound", err: &types.NotFound{}, want: true},
		{name: "generic 404", err: &smithy.GenericAPIError{Code: "404"}, want: true},
		{name: "generic NoSuchVersion", err: &smithy.GenericAPIError{Code: "NoSuchVersion"}, want: true},
		{name: "access denied", err: &smithy.GenericAPIError{Code: "AccessDenied"}, want: false},
		{name: "plain error", err: errors.New("connection reset"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isAPINotFound(tt.err))
		})
	}
}

func TestS3_HeadTranslatesNotFound(t *testing.T) {
	store := NewS3(&stubS3{headErr: &types.NotFound{}})

	_, err := store.Head(context.Background(), "bucket", "key", "v1")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "v1", nf.Version)
}

func TestS3_HeadWrapsOtherErrors(t *testing.T) {
	store := NewS3(&stubS3{headErr: &smithy.GenericAPIError{Code: "AccessDenied"}})

	_, err := store.Head(context.Background(), "bucket", "key", "")
	require.Error(t, err)
	assert.False(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "head object")
}

func TestS3_PutAppliesOptions(t *testing.T) {
	stub := &stubS3{}
	store := NewS3(stub)

	err := store.Put(context.Background(), "bucket", "key", strings.NewReader("hello"), PutOptions{
		Meta:     ObjectMeta{ContentType: "text/plain"},
		Tags:     map[string]string{"env": "prod"},
		KMSKeyID: "alias/mirror",
	})
	require.NoError(t, err)

	in := stub.lastPut
	require.NotNil(t, in)
	assert.Equal(t, "text/plain", aws.ToString(in.ContentType))
	assert.Equal(t, "env=prod", aws.ToString(in.Tagging))
	assert.Equal(t, types.ServerSideEncryptionAwsKms, in.ServerSideEncryption)
	assert.Equal(t, "alias/mirror", aws.ToString(in.SSEKMSKeyId))
}

func TestS3_PutOmitsEmptyOptions(t *testing.T) {
	stub := &stubS3{}
	store := NewS3(stub)

	require.NoError(t, store.Put(context.Background(), "bucket", "key", strings.NewReader("hello"), PutOptions{}))

	in := stub.lastPut
	require.NotNil(t, in)
	assert.Nil(t, in.ContentType)
	assert.Nil(t, in.Tagging)
	assert.Empty(t, in.ServerSideEncryption)
}

func TestEncodeTags(t *testing.T) {
	got := encodeTags(map[string]string{"env": "prod", "team": "data infra"})
	assert.Equal(t, "env=prod&team=data+infra", got)
}
