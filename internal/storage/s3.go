package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/bmatcuk/doublestar/v4"
)

const deleteBatchSize = 1000

// S3 is a Store over a bucket and key prefix.
type S3 struct {
	client     s3iface.S3API
	uploader   *s3manager.Uploader
	downloader *s3manager.Downloader
	bucket     string
	prefix     string
}

func NewS3(cfg S3Config, bucket, prefix string) (*S3, error) {
	awsCfg := &aws.Config{}
	if region := strings.TrimSpace(cfg.Region); region != "" {
		awsCfg.Region = aws.String(region)
	}
	if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
		awsCfg.Endpoint = aws.String(endpoint)
	}
	if cfg.ForcePathStyle {
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("s3 session: %w", err)
	}
	client := s3.New(sess)
	return &S3{
		client:     client,
		uploader:   s3manager.NewUploaderWithClient(client),
		downloader: s3manager.NewDownloaderWithClient(client),
		bucket:     bucket,
		prefix:     strings.Trim(prefix, "/"),
	}, nil
}

func (s *S3) URI() string {
	if s.prefix == "" {
		return "s3://" + s.bucket
	}
	return "s3://" + s.bucket + "/" + s.prefix
}

func (s *S3) objectKey(key string) (string, error) {
	cleaned, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return Join(s.prefix, cleaned), nil
}

func (s *S3) relative(objectKey string) string {
	if s.prefix == "" {
		return objectKey
	}
	return strings.TrimPrefix(objectKey, s.prefix+"/")
}

// listObjects returns root-relative keys under the object-key prefix.
func (s *S3) listObjects(ctx context.Context, prefix string) ([]string, error) {
	input := &s3.ListObjectsV2Input{Bucket: aws.String(s.bucket)}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}
	var keys []string
	err := s.client.ListObjectsV2PagesWithContext(ctx, input,
		func(page *s3.ListObjectsV2Output, lastPage bool) bool {
			for _, obj := range page.Contents {
				k := aws.StringValue(obj.Key)
				if strings.HasSuffix(k, "/") {
					continue
				}
				keys = append(keys, s.relative(k))
			}
			return !lastPage
		})
	if err != nil {
		return nil, fmt.Errorf("list s3://%s/%s: %w", s.bucket, prefix, err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *S3) Glob(ctx context.Context, pattern string) ([]string, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("%w: bad pattern %q", ErrInvalidKey, pattern)
	}
	base, _ := doublestar.SplitPattern(pattern)
	if base == "." {
		base = ""
	}
	listPrefix, err := s.objectKey(base)
	if err != nil {
		return nil, err
	}
	if listPrefix != "" {
		listPrefix += "/"
	}
	keys, err := s.listObjects(ctx, listPrefix)
	if err != nil {
		return nil, err
	}
	return matchKeys(pattern, keys), nil
}

func matchKeys(pattern string, keys []string) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if ok, _ := doublestar.Match(pattern, k); ok {
			out = append(out, k)
		}
	}
	return out
}

func (s *S3) List(ctx context.Context, prefix string) ([]string, error) {
	objPrefix, err := s.objectKey(prefix)
	if err != nil {
		return nil, err
	}
	if objPrefix != "" {
		objPrefix += "/"
	}
	return s.listObjects(ctx, objPrefix)
}

func (s *S3) Read(ctx context.Context, key string) ([]byte, error) {
	objKey, err := s.objectKey(key)
	if err != nil {
		return nil, err
	}
	buffer := aws.NewWriteAtBuffer(nil)
	_, err = s.downloader.DownloadWithContext(ctx, buffer, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objKey),
	})
	if err != nil {
		var aerr awserr.Error
		if errors.As(err, &aerr) && (aerr.Code() == s3.ErrCodeNoSuchKey || aerr.Code() == "NotFound") {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("download s3://%s/%s: %w", s.bucket, objKey, err)
	}
	return buffer.Bytes(), nil
}

func (s *S3) Write(ctx context.Context, key string, data []byte) error {
	objKey, err := s.objectKey(key)
	if err != nil {
		return err
	}
	_, err = s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objKey),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("upload s3://%s/%s: %w", s.bucket, objKey, err)
	}
	return nil
}

func (s *S3) DeletePrefix(ctx context.Context, prefix string) error {
	objPrefix, err := s.objectKey(prefix)
	if err != nil {
		return err
	}
	if objPrefix == "" || objPrefix == s.prefix {
		return fmt.Errorf("%w: refusing to delete store root", ErrInvalidKey)
	}
	keys, err := s.listObjects(ctx, objPrefix+"/")
	if err != nil {
		return err
	}
	for start := 0; start < len(keys); start += deleteBatchSize {
		end := min(start+deleteBatchSize, len(keys))
		objects := make([]*s3.ObjectIdentifier, 0, end-start)
		for _, k := range keys[start:end] {
			full, err := s.objectKey(k)
			if err != nil {
				return err
			}
			objects = append(objects, &s3.ObjectIdentifier{Key: aws.String(full)})
		}
		out, err := s.client.DeleteObjectsWithContext(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &s3.Delete{Objects: objects, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return fmt.Errorf("delete s3://%s/%s: %w", s.bucket, objPrefix, err)
		}
		if len(out.Errors) > 0 {
			first := out.Errors[0]
			return fmt.Errorf("delete s3://%s/%s: %d objects failed, first %s: %s",
				s.bucket, objPrefix, len(out.Errors), aws.StringValue(first.Key), aws.StringValue(first.Message))
		}
	}
	return nil
}
