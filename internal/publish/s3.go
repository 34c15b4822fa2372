package publish

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/qivr/analytics-etl/internal/domain"
)

// PutObjectAPI is the subset of the S3 client the store needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Store struct {
	client PutObjectAPI
}

func NewS3Store(client PutObjectAPI) *S3Store {
	return &S3Store{client: client}
}

func (s *S3Store) Put(ctx context.Context, in domain.PutObjectInput) (string, error) {
	params := &s3.PutObjectInput{
		Bucket:        aws.String(in.Bucket),
		Key:           aws.String(in.Key),
		Body:          bytes.NewReader(in.Body),
		ContentLength: aws.Int64(int64(len(in.Body))),
		ContentType:   aws.String(in.ContentType),
	}
	if in.ContentEncoding != "" {
		params.ContentEncoding = aws.String(in.ContentEncoding)
	}
	if _, err := s.client.PutObject(ctx, params); err != nil {
		return "", err
	}
	return fmt.Sprintf("s3://%s/%s", in.Bucket, in.Key), nil
}
