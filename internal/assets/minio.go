package assets

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
)

const (
	defaultRegion        = "us-east-1"
	defaultPresignExpiry = time.Hour
)

// MinioOptions configures the MinIO/S3 asset store.
type MinioOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	Expiry    time.Duration
	Logger    *logrus.Logger
}

// MinioStore serves branding assets from MinIO/S3 compatible storage using presigned URLs.
type MinioStore struct {
	client *minio.Client
	bucket string
	expiry time.Duration
	logger *logrus.Logger
}

// NewMinioStore builds the client. No request is made until EnsureBucket or an upload.
func NewMinioStore(opts MinioOptions) (*MinioStore, error) {
	if strings.TrimSpace(opts.Endpoint) == "" {
		return nil, eris.New("minio endpoint is required")
	}
	if strings.TrimSpace(opts.Bucket) == "" {
		return nil, eris.New("minio bucket is required")
	}

	region := opts.Region
	if region == "" {
		region = defaultRegion
	}
	expiry := opts.Expiry
	if expiry <= 0 {
		expiry = defaultPresignExpiry
	}

	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, eris.Wrap(err, "init minio client")
	}

	return &MinioStore{client: client, bucket: opts.Bucket, expiry: expiry, logger: opts.Logger}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (m *MinioStore) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return eris.Wrap(err, "check bucket")
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
		return eris.Wrap(err, "create bucket")
	}
	return nil
}

// ImageURL presigns a GET for the requested rendition. Failures are logged and yield no URL.
func (m *MinioStore) ImageURL(ctx context.Context, ref string, size Size) (string, bool) {
	if strings.TrimSpace(ref) == "" {
		return "", false
	}
	if isAbsolute(ref) {
		return ref, true
	}

	key := objectKey(ref, size)
	url, err := m.client.PresignedGetObject(ctx, m.bucket, key, m.expiry, nil)
	if err != nil {
		if m.logger != nil {
			m.logger.WithFields(logrus.Fields{"key": key, "error": err.Error()}).Warn("presign asset url failed")
		}
		return "", false
	}
	return url.String(), true
}

// Put uploads an object.
func (m *MinioStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := m.client.PutObject(ctx, m.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return eris.Wrapf(err, "put object %s", key)
	}
	return nil
}
