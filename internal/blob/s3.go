package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/Debayan00100101/chatt/internal/apperrors"
)

// S3Store keeps blobs in a bucket. A custom endpoint supports MinIO.
type S3Store struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	log      *zap.SugaredLogger
}

func NewS3Store(ctx context.Context, region, bucket, endpoint string, log *zap.SugaredLogger) (*S3Store, error) {
	cfg, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(region))
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Store{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		log:      log,
	}, nil
}

func (s *S3Store) Put(ctx context.Context, data []byte, hint string) (string, error) {
	key := ContentKey(data, hint)
	ok, err := s.Exists(ctx, key)
	if err != nil {
		return "", err
	}
	if ok {
		return key, nil
	}
	return key, s.upload(ctx, key, data)
}

func (s *S3Store) PutAvatar(ctx context.Context, username string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", nil
	}
	key := AvatarKey(username)
	return key, s.upload(ctx, key, data)
}

func (s *S3Store) upload(ctx context.Context, key string, data []byte) error {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("%w: s3 upload %s: %v", apperrors.ErrStorage, key, err)
	}
	return nil
}

func (s *S3Store) Get(ctx context.Context, key string) ([]byte, error) {
	if !validKey(key) {
		return nil, apperrors.ErrNotFound
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("%w: s3 get %s: %v", apperrors.ErrStorage, key, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: s3 read %s: %v", apperrors.ErrStorage, key, err)
	}
	return data, nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	if !validKey(key) {
		return nil
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		s.log.Warnw("blob delete failed", "key", key, "err", err)
	}
	return nil
}

func (s *S3Store) Exists(ctx context.Context, key string) (bool, error) {
	if !validKey(key) {
		return false, nil
	}
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return false, nil
		}
		return false, fmt.Errorf("%w: s3 head %s: %v", apperrors.ErrStorage, key, err)
	}
	return true, nil
}
