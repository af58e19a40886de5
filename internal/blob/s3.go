package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3API is the subset of the S3 client used by the adapter.
type S3API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObjectTagging(ctx context.Context, params *s3.GetObjectTaggingInput, optFns ...func(*s3.Options)) (*s3.GetObjectTaggingOutput, error)
	PutObjectTagging(ctx context.Context, params *s3.PutObjectTaggingInput, optFns ...func(*s3.Options)) (*s3.PutObjectTaggingOutput, error)
	DeleteObjectTagging(ctx context.Context, params *s3.DeleteObjectTaggingInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectTaggingOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3 adapts an S3 client to the Store contract. Not-found responses are
// translated into *NotFoundError; every other error passes through wrapped.
type S3 struct {
	client S3API
}

// NewS3 creates a Store backed by the given S3 client.
func NewS3(client S3API) *S3 {
	return &S3{client: client}
}

// Head returns the object's system metadata.
func (s *S3) Head(ctx context.Context, bucket, key, version string) (ObjectMeta, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket:    aws.String(bucket),
		Key:       aws.String(key),
		VersionId: optString(version),
	})
	if err != nil {
		return ObjectMeta{}, notFoundOr(err, bucket, key, version, "head object")
	}

	return ObjectMeta{
		ETag:               aws.ToString(out.ETag),
		VersionID:          aws.ToString(out.VersionId),
		ContentLength:      aws.ToInt64(out.ContentLength),
		LastModified:       aws.ToTime(out.LastModified),
		CacheControl:       aws.ToString(out.CacheControl),
		ContentDisposition: aws.ToString(out.ContentDisposition),
		ContentEncoding:    aws.ToString(out.ContentEncoding),
		ContentLanguage:    aws.ToString(out.ContentLanguage),
		ContentType:        aws.ToString(out.ContentType),
		Expires:            aws.ToTime(out.Expires),
		Metadata:           out.Metadata,
		SSE:                string(out.ServerSideEncryption),
		SSEKMSKeyID:        aws.ToString(out.SSEKMSKeyId),
	}, nil
}

// Open streams the object body.
func (s *S3) Open(ctx context.Context, bucket, key, version string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket:    aws.String(bucket),
		Key:       aws.String(key),
		VersionId: optString(version),
	})
	if err != nil {
		return nil, notFoundOr(err, bucket, key, version, "get object")
	}
	return out.Body, nil
}

// Put uploads body under key with the allow-listed headers, tag set and
// encryption parameters from opts.
func (s *S3) Put(ctx context.Context, bucket, key string, body io.Reader, opts PutOptions) error {
	in := &s3.PutObjectInput{
		Bucket:             aws.String(bucket),
		Key:                aws.String(key),
		Body:               body,
		CacheControl:       optString(opts.Meta.CacheControl),
		ContentDisposition: optString(opts.Meta.ContentDisposition),
		ContentEncoding:    optString(opts.Meta.ContentEncoding),
		ContentLanguage:    optString(opts.Meta.ContentLanguage),
		ContentType:        optString(opts.Meta.ContentType),
		Expires:            optTime(opts.Meta.Expires),
	}
	if len(opts.Meta.Metadata) > 0 {
		in.Metadata = opts.Meta.Metadata
	}
	if len(opts.Tags) > 0 {
		in.Tagging = aws.String(encodeTags(opts.Tags))
	}
	if opts.KMSKeyID != "" {
		in.ServerSideEncryption = types.ServerSideEncryptionAwsKms
		in.SSEKMSKeyId = aws.String(opts.KMSKeyID)
	}

	if _, err := s.client.PutObject(ctx, in); err != nil {
		return fmt.Errorf("put object %s/%s: %w", bucket, key, err)
	}
	return nil
}

// Tags returns the object's tag set as a flat map.
func (s *S3) Tags(ctx context.Context, bucket, key, version string) (map[string]string, error) {
	out, err := s.client.GetObjectTagging(ctx, &s3.GetObjectTaggingInput{
		Bucket:    aws.String(bucket),
		Key:       aws.String(key),
		VersionId: optString(version),
	})
	if err != nil {
		return nil, notFoundOr(err, bucket, key, version, "get object tagging")
	}

	tags := make(map[string]string, len(out.TagSet))
	for _, t := range out.TagSet {
		tags[aws.ToString(t.Key)] = aws.ToString(t.Value)
	}
	return tags, nil
}

// SetTags replaces the object's full tag set.
func (s *S3) SetTags(ctx context.Context, bucket, key, version string, tags map[string]string) error {
	tagSet := make([]types.Tag, 0, len(tags))
	for k, v := range tags {
		tagSet = append(tagSet, types.Tag{Key: aws.String(k), Value: aws.String(v)})
	}

	_, err := s.client.PutObjectTagging(ctx, &s3.PutObjectTaggingInput{
		Bucket:    aws.String(bucket),
		Key:       aws.String(key),
		VersionId: optString(version),
		Tagging:   &types.Tagging{TagSet: tagSet},
	})
	if err != nil {
		return notFoundOr(err, bucket, key, version, "put object tagging")
	}
	return nil
}

// ClearTags removes the object's tag set entirely.
func (s *S3) ClearTags(ctx context.Context, bucket, key, version string) error {
	_, err := s.client.DeleteObjectTagging(ctx, &s3.DeleteObjectTaggingInput{
		Bucket:    aws.String(bucket),
		Key:       aws.String(key),
		VersionId: optString(version),
	})
	if err != nil {
		return notFoundOr(err, bucket, key, version, "delete object tagging")
	}
	return nil
}

// Delete removes the object (a specific version when given).
func (s *S3) Delete(ctx context.Context, bucket, key, version string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket:    aws.String(bucket),
		Key:       aws.String(key),
		VersionId: optString(version),
	})
	if err != nil {
		return notFoundOr(err, bucket, key, version, "delete object")
	}
	return nil
}

// encodeTags renders a tag map as the URL-encoded tagging header.
func encodeTags(tags map[string]string) string {
	values := url.Values{}
	for k, v := range tags {
		values.Set(k, v)
	}
	return values.Encode()
}

// notFoundOr converts S3 not-found responses into *NotFoundError and wraps
// everything else with the operation name.
func notFoundOr(err error, bucket, key, version, op string) error {
	if isAPINotFound(err) {
		return &NotFoundError{Bucket: bucket, Key: key, Version: version, Err: err}
	}
	return fmt.Errorf("%s %s/%s: %w", op, bucket, key, err)
}

// isAPINotFound matches the not-found shapes S3 responds with: the modeled
// NoSuchKey error on GetObject and the bare 404/NotFound codes HeadObject
// and DeleteObject produce.
func isAPINotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey", "NoSuchVersion", "404":
			return true
		}
	}
	return false
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return aws.String(s)
}

func optTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return aws.Time(t)
}
