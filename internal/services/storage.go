package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"

	"github.com/chachabrian/mooveit-fleet/internal/config"
)

// MaxPhotoSize bounds a single inspection photo upload.
const MaxPhotoSize = 10 << 20

// ErrInvalidPhoto is returned for empty, oversized or non-image uploads.
var ErrInvalidPhoto = errors.New("invalid photo")

// PhotoStorage stores inspection photos and returns their public URL.
type PhotoStorage interface {
	Save(ctx context.Context, folder, filename string, r io.Reader) (string, error)
}

// NewPhotoStorage returns S3 storage when a bucket is configured and local
// storage otherwise.
func NewPhotoStorage(cfg *config.StorageConfig, baseURL string) (PhotoStorage, error) {
	if cfg.S3Bucket != "" {
		// Credentials come from the default AWS chain (env, shared config, role).
		sess, err := session.NewSession(&aws.Config{Region: aws.String(cfg.S3Region)})
		if err != nil {
			return nil, fmt.Errorf("failed to create AWS session: %w", err)
		}
		return NewS3Storage(s3manager.NewUploader(sess), cfg.S3Bucket, cfg.S3Region), nil
	}
	return NewLocalStorage(cfg.LocalDir, baseURL)
}

type S3Storage struct {
	uploader s3manageriface.UploaderAPI
	bucket   string
	region   string
}

func NewS3Storage(uploader s3manageriface.UploaderAPI, bucket, region string) *S3Storage {
	return &S3Storage{uploader: uploader, bucket: bucket, region: region}
}

func (s *S3Storage) Save(ctx context.Context, folder, filename string, r io.Reader) (string, error) {
	body, contentType, err := readPhoto(r)
	if err != nil {
		return "", err
	}

	key := path.Join(folder, objectName(filename))
	_, err = s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key), nil
}

// LocalStorage writes photos under dir and serves them from baseURL/uploads.
// Not meant for production.
type LocalStorage struct {
	dir     string
	baseURL string
}

func NewLocalStorage(dir, baseURL string) (*LocalStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &LocalStorage{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Dir is the directory served under /uploads.
func (s *LocalStorage) Dir() string { return s.dir }

func (s *LocalStorage) Save(_ context.Context, folder, filename string, r io.Reader) (string, error) {
	body, _, err := readPhoto(r)
	if err != nil {
		return "", err
	}

	folderPath := filepath.Join(s.dir, filepath.FromSlash(folder))
	if err := os.MkdirAll(folderPath, 0o755); err != nil {
		return "", fmt.Errorf("failed to create folder directory: %w", err)
	}

	name := objectName(filename)
	if err := os.WriteFile(filepath.Join(folderPath, name), body, 0o644); err != nil {
		return "", fmt.Errorf("failed to save file: %w", err)
	}

	return fmt.Sprintf("%s/uploads/%s", s.baseURL, path.Join(folder, name)), nil
}

func readPhoto(r io.Reader) ([]byte, string, error) {
	body, err := io.ReadAll(io.LimitReader(r, MaxPhotoSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read file: %w", err)
	}
	if len(body) > MaxPhotoSize {
		return nil, "", fmt.Errorf("%w: exceeds %d bytes", ErrInvalidPhoto, MaxPhotoSize)
	}
	if len(body) == 0 {
		return nil, "", fmt.Errorf("%w: empty", ErrInvalidPhoto)
	}
	contentType := http.DetectContentType(body)
	if !strings.HasPrefix(contentType, "image/") {
		return nil, "", fmt.Errorf("%w: unsupported content type %q", ErrInvalidPhoto, contentType)
	}
	return body, contentType, nil
}

func objectName(filename string) string {
	return fmt.Sprintf("%d%s", time.Now().UnixNano(), strings.ToLower(filepath.Ext(filename)))
}
