package filestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/shelfd/internal/config"
	"github.com/fyrsmithlabs/shelfd/internal/sourcefile"
)

// bucketMu serialises probe-and-create so that concurrent startups do not
// race on bucket creation.
var bucketMu sync.Mutex

// S3Store keeps objects in an S3-compatible bucket via MinIO's client.
type S3Store struct {
	client *minio.Client
	bucket string
	logger *zap.Logger
}

// NewS3Store connects to the configured endpoint and ensures the target
// bucket exists. A bucket already owned by us counts as success.
func NewS3Store(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*S3Store, error) {
	if cfg.FileStoreS3BucketName == "" {
		return nil, errors.New("s3 bucket name is required")
	}

	client, err := minio.New(cfg.FileStoreS3EndpointURL, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.FileStoreS3AccessKeyID, cfg.FileStoreS3SecretAccessKey.Value(), ""),
		Region: cfg.FileStoreS3RegionName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client: %w", err)
	}

	s := &S3Store{client: client, bucket: cfg.FileStoreS3BucketName, logger: logger.Named("filestore.s3")}
	if err := s.ensureBucket(ctx, cfg.FileStoreS3RegionName); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *S3Store) ensureBucket(ctx context.Context, region string) error {
	bucketMu.Lock()
	defer bucketMu.Unlock()

	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}

	err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: region})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "BucketAlreadyOwnedByYou" {
			return nil
		}
		return fmt.Errorf("failed to create bucket %s: %w", s.bucket, err)
	}
	s.logger.Info("created bucket", zap.String("bucket", s.bucket))
	return nil
}

// AddDocument uploads the file bytes under its document id.
func (s *S3Store) AddDocument(ctx context.Context, doc sourcefile.SourceFile) error {
	buf, err := doc.Buffer()
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, s.bucket, doc.ID, bytes.NewReader(buf), int64(len(buf)),
		minio.PutObjectOptions{ContentType: doc.MimeType})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", doc.ID, err)
	}
	return nil
}

// Delete removes the object. Returns ErrNotFound for unknown ids.
func (s *S3Store) Delete(ctx context.Context, docID string) error {
	exists, err := s.Exists(ctx, docID)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	if err := s.client.RemoveObject(ctx, s.bucket, docID, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete %s: %w", docID, err)
	}
	return nil
}

// GetDocument downloads the object into a freshly materialised temporary
// file; the caller owns the returned file's lifetime.
func (s *S3Store) GetDocument(ctx context.Context, docID string) (sourcefile.SourceFile, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, docID, minio.GetObjectOptions{})
	if err != nil {
		return sourcefile.SourceFile{}, fmt.Errorf("failed to fetch %s: %w", docID, err)
	}
	defer obj.Close()

	buf, err := io.ReadAll(obj)
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" {
			return sourcefile.SourceFile{}, ErrNotFound
		}
		return sourcefile.SourceFile{}, fmt.Errorf("failed to read %s: %w", docID, err)
	}

	f, err := sourcefile.NewTemp(buf, "pdf")
	if err != nil {
		return sourcefile.SourceFile{}, err
	}
	f.ID = docID
	f.MimeType = "application/pdf"
	f.FileName = docID + ".pdf"
	return f, nil
}

// Exists issues a head probe; a missing key maps to false, other errors
// propagate.
func (s *S3Store) Exists(ctx context.Context, docID string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, docID, minio.StatObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.StatusCode == 404 {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat %s: %w", docID, err)
	}
	return true, nil
}
