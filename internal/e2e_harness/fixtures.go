package e2e_harness

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/lychee-technology/sweet"
)

// Schema fixtures: departments and employees reference each other, and
// employees also references itself through manager_id.
const (
	DepartmentsSchema = `
name: departments
description: Company departments
fields:
  - name: code
    type: string
    constraints:
      required: true
  - name: head_employee_id
    type: integer
primaryKey: code
foreignKeys:
  - fields: head_employee_id
    reference:
      resource: employees
      fields: employee_id
`
	EmployeesSchema = `
name: employees
description: Company employees
fields:
  - name: employee_id
    type: integer
    constraints:
      required: true
  - name: department_code
    type: string
  - name: manager_id
    type: integer
  - name: profile
    type: json
primaryKey: employee_id
foreignKeys:
  - fields: department_code
    reference:
      resource: departments
      fields: code
  - fields: manager_id
    reference:
      resource: ""
      fields: employee_id
`
)

// ArchiveConfig returns the storage settings pointing at the harness S3
// container.
func ArchiveConfig(endpoint, bucket string) sweet.StorageConfig {
	return sweet.StorageConfig{
		Backend:         "s3",
		Prefix:          "schemas/",
		Bucket:          bucket,
		Region:          "us-east-1",
		Endpoint:        endpoint,
		AccessKeyID:     s3AccessKey,
		SecretAccessKey: s3SecretKey,
		UsePathStyle:    true,
	}
}

// EnsureBucket creates bucket on the S3 endpoint unless it exists already.
func EnsureBucket(ctx context.Context, endpoint, bucket string) error {
	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion("us-east-1"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(s3AccessKey, s3SecretKey, "")),
	}
	if endpoint != "" {
		loadOpts = append(loadOpts, config.WithBaseEndpoint(endpoint))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})

	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)}); err == nil {
		return nil
	}
	if _, err := client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)}); err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			switch apiErr.ErrorCode() {
			case "BucketAlreadyOwnedByYou", "BucketAlreadyExists":
				return nil
			}
		}
		return fmt.Errorf("create bucket: %w", err)
	}
	return nil
}
