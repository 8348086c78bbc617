package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/eleven-am/netform/internal/domain"
)

// S3API is the subset of the S3 client used by S3Store.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Store writes one object per logical name under
// <prefix>/<topology>/<logical name>.json. S3 read-after-write consistency
// gives per-key strong consistency.
type S3Store struct {
	client S3API
	bucket string
	prefix string
}

func NewS3Store(client S3API, bucket, prefix, topology string) *S3Store {
	return &S3Store{
		client: client,
		bucket: bucket,
		prefix: path.Join(strings.Trim(prefix, "/"), topology),
	}
}

func (s *S3Store) key(logicalName string) string {
	return path.Join(s.prefix, logicalName+".json")
}

func (s *S3Store) Get(ctx context.Context, logicalName string) (domain.ResourceRecord, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(logicalName)),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return domain.ResourceRecord{}, domain.ErrNotFound
		}
		return domain.ResourceRecord{}, domain.StoreError("get", logicalName, err)
	}
	defer out.Body.Close()

	var rec domain.ResourceRecord
	if err := json.NewDecoder(out.Body).Decode(&rec); err != nil {
		return domain.ResourceRecord{}, domain.StoreError("get", logicalName, fmt.Errorf("decode: %w", err))
	}
	return rec, nil
}

func (s *S3Store) Put(ctx context.Context, record domain.ResourceRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return domain.StoreError("put", record.LogicalName, err)
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(record.LogicalName)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return domain.StoreError("put", record.LogicalName, err)
	}
	return nil
}

func (s *S3Store) Delete(ctx context.Context, logicalName string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(logicalName)),
	})
	if err != nil && !isNoSuchKey(err) {
		return domain.StoreError("delete", logicalName, err)
	}
	return nil
}

func (s *S3Store) List(ctx context.Context) ([]domain.ResourceRecord, error) {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix + "/"),
	})
	var objects []s3types.Object
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, domain.StoreError("list", s.prefix, err)
		}
		objects = append(objects, page.Contents...)
	}

	records := make(map[string]domain.ResourceRecord, len(objects))
	for _, obj := range objects {
		key := aws.ToString(obj.Key)
		if !strings.HasSuffix(key, ".json") {
			continue
		}
		name := strings.TrimSuffix(path.Base(key), ".json")
		rec, err := s.Get(ctx, name)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		records[name] = rec
	}
	return sortedRecords(records), nil
}

func isNoSuchKey(err error) bool {
	var nsk *s3types.NoSuchKey
	var nf *s3types.NotFound
	return errors.As(err, &nsk) || errors.As(err, &nf)
}
