package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// Part is one entry of a multipart completion manifest as reported by the
// client from each part's upload response.
type Part struct {
	PartNumber int32  `json:"partNumber"`
	ETag       string `json:"etag"`
}

// PresignUpload returns a time-limited PUT URL. Content type and length are
// part of the signature so S3 itself rejects an upload that doesn't match
// what was declared.
func (c *S3Client) PresignUpload(ctx context.Context, bucket, key, contentType string, size int64, expires time.Duration) (string, error) {
	req, err := c.Presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return "", fmt.Errorf("failed to presign upload, %w", err)
	}

	return req.URL, nil
}

// PresignDownload returns a time-limited GET URL with a response disposition
// carrying the original file name.
func (c *S3Client) PresignDownload(ctx context.Context, bucket, key, fileName string, expires time.Duration) (string, error) {
	req, err := c.Presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket:                     aws.String(bucket),
		Key:                        aws.String(key),
		ResponseContentDisposition: aws.String(fmt.Sprintf("attachment; filename=%q", fileName)),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return "", fmt.Errorf("failed to presign download, %w", err)
	}

	return req.URL, nil
}

// CreateMultipart opens a multipart session and returns its upload ID.
func (c *S3Client) CreateMultipart(ctx context.Context, bucket, key, contentType string) (string, error) {
	out, err := c.C.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create multipart upload, %w", err)
	}

	return *out.UploadId, nil
}

// PresignPart returns a time-limited PUT URL scoped to one part index of an
// open multipart session.
func (c *S3Client) PresignPart(ctx context.Context, bucket, key, uploadID string, partNumber int32, expires time.Duration) (string, error) {
	req, err := c.Presign.PresignUploadPart(ctx, &s3.UploadPartInput{
		Bucket:     aws.String(bucket),
		Key:        aws.String(key),
		UploadId:   aws.String(uploadID),
		PartNumber: aws.Int32(partNumber),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return "", fmt.Errorf("failed to presign part %d, %w", partNumber, err)
	}

	return req.URL, nil
}

// CompleteMultipart hands the client-supplied part manifest to S3 for
// validation and assembly.
func (c *S3Client) CompleteMultipart(ctx context.Context, bucket, key, uploadID string, parts []Part) error {
	completed := make([]types.CompletedPart, len(parts))
	for i, p := range parts {
		completed[i] = types.CompletedPart{
			PartNumber: aws.Int32(p.PartNumber),
			ETag:       aws.String(p.ETag),
		}
	}

	_, err := c.C.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: completed,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to complete multipart upload, %w", err)
	}

	return nil
}

// AbortMultipart discards all uploaded parts and releases the session.
func (c *S3Client) AbortMultipart(ctx context.Context, bucket, key, uploadID string) error {
	_, err := c.C.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	})
	if err != nil {
		return fmt.Errorf("failed to abort multipart upload, %w", err)
	}

	return nil
}

// DeleteObject removes one object from the given bucket.
func (c *S3Client) DeleteObject(ctx context.Context, bucket, key string) error {
	_, err := c.C.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object, %w", err)
	}

	return nil
}
