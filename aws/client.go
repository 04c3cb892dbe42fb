// Package aws defines functions used to interact with the AWS API
package aws

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/spf13/viper"
)

type S3Client struct {
	C       *s3.Client
	Presign *s3.PresignClient

	// Private uploads bucket and the public CDN-backed bucket
	Bucket    string
	CDNBucket string
}

func NewS3() (*S3Client, error) {
	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			viper.GetString("aws.access_key_id"),
			viper.GetString("aws.secret_access_key"),
			"",
		)),
	)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.Region = viper.GetString("aws.region")
	})

	c := &S3Client{
		C:         client,
		Presign:   s3.NewPresignClient(client),
		Bucket:    viper.GetString("aws.bucket"),
		CDNBucket: viper.GetString("aws.cdn_bucket"),
	}

	for _, bucket := range []string{c.Bucket, c.CDNBucket} {
		_, err = client.HeadBucket(context.TODO(), &s3.HeadBucketInput{
			Bucket: aws.String(bucket),
		})
		if err != nil {
			var apiErr smithy.APIError

			if errors.As(err, &apiErr) {
				if apiErr.ErrorCode() == "NotFound" {
					return nil, fmt.Errorf("bucket '%s' does not exist", bucket)
				}
			}

			return nil, fmt.Errorf("failed to check if bucket exists, %w", err)
		}
	}

	return c, nil
}
