// Package buildlog archives raw CI build logs as zstd-compressed objects in
// S3, keyed by submission id. The ledger keeps only the parsed log lines;
// the archive holds the full text for later inspection.
package buildlog

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
)

type Archive struct {
	client *s3.Client
	bucket string
}

func NewArchive(region string, bucket string) (*Archive, error) {
	cfg, err := config.LoadDefaultConfig(context.TODO(), config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	return &Archive{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
	}, nil
}

func objectKey(submissionID uuid.UUID) string {
	return fmt.Sprintf("build-logs/%s.log.zst", submissionID)
}

// Store compresses and uploads the full build log of one submission.
func (a *Archive) Store(ctx context.Context, submissionID uuid.UUID, logText []byte) error {
	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	defer encoder.Close()
	compressed := encoder.EncodeAll(logText, make([]byte, 0, len(logText)))

	key := objectKey(submissionID)
	contentType := "application/zstd"
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &a.bucket,
		Key:         &key,
		Body:        bytes.NewReader(compressed),
		ContentType: &contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to upload build log: %w", err)
	}
	return nil
}

// Fetch downloads and decompresses the archived build log. The bool is false
// when no log was archived for the submission.
func (a *Archive) Fetch(ctx context.Context, submissionID uuid.UUID) ([]byte, bool, error) {
	key := objectKey(submissionID)
	output, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &a.bucket,
		Key:    &key,
	})
	if err != nil {
		var responseError *awshttp.ResponseError
		if errors.As(err, &responseError) && responseError.ResponseError.HTTPStatusCode() == 404 {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to download build log: %w", err)
	}
	defer output.Body.Close()

	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(output.Body); err != nil {
		return nil, false, fmt.Errorf("failed to read build log body: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	defer decoder.Close()
	plain, err := decoder.DecodeAll(buf.Bytes(), nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decompress build log: %w", err)
	}
	return plain, true, nil
}
