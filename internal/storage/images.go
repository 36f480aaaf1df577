// Package storage provides the external stores used for media: Supabase Storage for images,
// Bunny Stream for lesson videos and Redis for short-lived OAuth state.
package storage

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	storage_go "github.com/supabase-community/storage-go"
)

// ErrImagesDisabled is returned when Supabase credentials are not configured
var ErrImagesDisabled = errors.New("image storage is not configured")

// ImageStore uploads public images to a Supabase Storage bucket
type ImageStore struct {
	baseURL string
	bucket  string
	upload  func(path string, data io.Reader, contentType string) error
	remove  func(path string) error
}

// NewImageStore creates an ImageStore. An empty url or key yields a disabled store.
func NewImageStore(url, key, bucket string) *ImageStore {
	url = strings.TrimRight(url, "/")
	store := &ImageStore{baseURL: url, bucket: bucket}
	if url == "" || key == "" {
		return store
	}

	client := storage_go.NewClient(url+"/storage/v1", key, nil)
	store.upload = func(path string, data io.Reader, contentType string) error {
		upsert := true
		_, err := client.UploadFile(bucket, path, data, storage_go.FileOptions{
			ContentType: &contentType,
			Upsert:      &upsert,
		})
		return err
	}
	store.remove = func(path string) error {
		_, err := client.RemoveFile(bucket, []string{path})
		return err
	}
	return store
}

// Enabled reports whether uploads are possible
func (s *ImageStore) Enabled() bool {
	return s.upload != nil
}

// Upload stores data under folder with a generated name and returns the object path and public URL
func (s *ImageStore) Upload(folder, extension, contentType string, data io.Reader) (string, string, error) {
	if !s.Enabled() {
		return "", "", ErrImagesDisabled
	}

	path := folder + "/" + GenerateFileName(extension)
	if err := s.upload(path, data, contentType); err != nil {
		return "", "", fmt.Errorf("failed to upload %s: %w", path, err)
	}

	return path, s.PublicURL(path), nil
}

// Delete removes an object. Missing credentials make it a no-op.
func (s *ImageStore) Delete(path string) error {
	if s.remove == nil || path == "" {
		return nil
	}
	if err := s.remove(path); err != nil {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	return nil
}

// PublicURL returns the public download URL of an object
func (s *ImageStore) PublicURL(path string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, s.bucket, path)
}

// GenerateFileName returns a UUID-based file name with the given extension
func GenerateFileName(extension string) string {
	name := uuid.New().String()
	if extension != "" && extension[0] != '.' {
		return name + "." + extension
	}
	return name + extension
}
