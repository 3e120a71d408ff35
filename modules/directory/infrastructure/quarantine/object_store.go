package quarantine

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sirupsen/logrus"

	"github.com/211-Connect/silobuster-resources/modules/directory/services"
)

// Uploader is the slice of the minio client the export needs.
type Uploader interface {
	FPutObject(ctx context.Context, bucket, object, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

type ObjectStoreConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

// NewMinioClient builds a client for an S3 compatible endpoint. Endpoint may
// be a bare host or a URL; an https scheme forces TLS.
func NewMinioClient(cfg ObjectStoreConfig) (*minio.Client, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("object store endpoint is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("object store credentials are required")
	}
	endpoint, secure := cfg.Endpoint, cfg.UseSSL
	if u, err := url.Parse(cfg.Endpoint); err == nil && u.Host != "" {
		endpoint = u.Host
		secure = secure || u.Scheme == "https"
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return client, nil
}

// ObjectStoreWriter writes the local export and then uploads it.
type ObjectStoreWriter struct {
	file     FileWriter
	uploader Uploader
	bucket   string
	prefix   string
	logger   *logrus.Entry
}

func NewObjectStoreWriter(file FileWriter, uploader Uploader, bucket, prefix string, logger *logrus.Entry) *ObjectStoreWriter {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &ObjectStoreWriter{
		file:     file,
		uploader: uploader,
		bucket:   bucket,
		prefix:   strings.Trim(prefix, "/"),
		logger:   logger,
	}
}

// ObjectName is the key the local file is uploaded under.
func (w *ObjectStoreWriter) ObjectName() string {
	name := filepath.Base(w.file.Path())
	if w.prefix == "" {
		return name
	}
	return w.prefix + "/" + name
}

func (w *ObjectStoreWriter) WriteRecords(ctx context.Context, records []services.InvalidRecord) error {
	if err := w.file.WriteRecords(ctx, records); err != nil {
		return err
	}
	object := w.ObjectName()
	info, err := w.uploader.FPutObject(ctx, w.bucket, object, w.file.Path(), minio.PutObjectOptions{
		ContentType: w.file.Format().ContentType(),
	})
	if err != nil {
		return fmt.Errorf("upload %s to %s: %w", object, w.bucket, err)
	}
	w.logger.WithFields(logrus.Fields{
		"bucket":  w.bucket,
		"object":  object,
		"size":    info.Size,
		"records": len(records),
	}).Info("quarantine uploaded")
	return nil
}
