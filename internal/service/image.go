package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/pageza/foodgram/backend/config"
)

const maxImageBytes = 10 << 20

var errNotAnImage = errors.New("upload a valid image")

// ImageStore persists uploaded images and resolves their public URLs
type ImageStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// ImageService decodes base64 uploads and hands them to an ImageStore
type ImageService struct {
	store ImageStore
}

func NewImageService(store ImageStore) *ImageService {
	return &ImageService{store: store}
}

// SaveDataURI stores a "data:image/...;base64,..." payload (or bare base64)
// under prefix and returns the storage key. Decode failures are reported as
// a validation error on field.
func (s *ImageService) SaveDataURI(ctx context.Context, field, prefix, value string) (string, error) {
	data, mime, err := decodeImage(value)
	if err != nil {
		return "", fieldError(field, err.Error())
	}

	key := path.Join(prefix, uuid.New().String()+mime.Extension())
	if err := s.store.Put(ctx, key, data, mime.String()); err != nil {
		return "", fmt.Errorf("failed to store image: %w", err)
	}
	return key, nil
}

// Delete removes a stored image; empty keys are ignored
func (s *ImageService) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	return s.store.Delete(ctx, key)
}

// URL resolves a storage key, returning "" for an empty key
func (s *ImageService) URL(key string) string {
	if key == "" {
		return ""
	}
	return s.store.URL(key)
}

func decodeImage(value string) ([]byte, *mimetype.MIME, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil, errors.New("this field is required")
	}
	if strings.HasPrefix(value, "data:") {
		comma := strings.IndexByte(value, ',')
		if comma < 0 || !strings.Contains(value[:comma], ";base64") {
			return nil, nil, errNotAnImage
		}
		value = value[comma+1:]
	}

	data, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, nil, errNotAnImage
	}
	if len(data) > maxImageBytes {
		return nil, nil, fmt.Errorf("image exceeds %d bytes", maxImageBytes)
	}

	mime := mimetype.Detect(data)
	if !strings.HasPrefix(mime.String(), "image/") {
		return nil, nil, errNotAnImage
	}
	return data, mime, nil
}

// S3ImageStore keeps images in an S3 bucket with public-read URLs
type S3ImageStore struct {
	s3Config *config.S3Config
}

func NewS3ImageStore(s3Config *config.S3Config) *S3ImageStore {
	return &S3ImageStore{s3Config: s3Config}
}

func (s *S3ImageStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.s3Config.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.s3Config.BucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}
	return nil
}

func (s *S3ImageStore) Delete(ctx context.Context, key string) error {
	_, err := s.s3Config.Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.s3Config.BucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete from S3: %w", err)
	}
	return nil
}

func (s *S3ImageStore) URL(key string) string {
	return s.s3Config.PublicURL(key)
}

// LocalImageStore writes images under a media root served by the HTTP server
type LocalImageStore struct {
	root    string
	baseURL string
}

func NewLocalImageStore(root, baseURL string) *LocalImageStore {
	return &LocalImageStore{root: root, baseURL: strings.TrimRight(baseURL, "/")}
}

func (s *LocalImageStore) Put(_ context.Context, key string, data []byte, _ string) error {
	full := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	return os.WriteFile(full, data, 0o644)
}

func (s *LocalImageStore) Delete(_ context.Context, key string) error {
	err := os.Remove(filepath.Join(s.root, filepath.FromSlash(key)))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func (s *LocalImageStore) URL(key string) string {
	return s.baseURL + "/" + key
}
