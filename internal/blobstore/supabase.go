package blobstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"drivechat/internal/domain"
)

const removeBatchSize = 100

// SupabaseStorage talks to the Supabase Storage HTTP API with the service
// key. Paths are bucket-relative.
type SupabaseStorage struct {
	baseURL    string
	bucket     string
	serviceKey string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewSupabaseStorage creates a storage client for one bucket.
func NewSupabaseStorage(supabaseURL, bucket, serviceKey string, logger *slog.Logger) *SupabaseStorage {
	return &SupabaseStorage{
		baseURL:    strings.TrimRight(supabaseURL, "/") + "/storage/v1",
		bucket:     bucket,
		serviceKey: serviceKey,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger,
	}
}

func (s *SupabaseStorage) objectURL(path string) string {
	escaped := make([]string, 0, 4)
	for _, part := range strings.Split(path, "/") {
		escaped = append(escaped, url.PathEscape(part))
	}
	return fmt.Sprintf("%s/object/%s/%s", s.baseURL, s.bucket, strings.Join(escaped, "/"))
}

// Upload writes data under path. Existing objects at the same path are
// overwritten, matching upsert semantics.
func (s *SupabaseStorage) Upload(ctx context.Context, path, contentType string, data []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.objectURL(path), bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create upload request: %w", err)
	}
	s.authorize(req)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("x-upsert", "true")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("storage upload failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", storageError("upload", path, resp)
	}
	return path, nil
}

// Download returns the payload stored under path.
func (s *SupabaseStorage) Download(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.objectURL(path), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}
	s.authorize(req)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("storage download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, &domain.NotFoundError{Message: fmt.Sprintf("object %q not found", path)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, storageError("download", path, resp)
	}
	return io.ReadAll(resp.Body)
}

// Remove deletes the given paths in batches. The API treats missing paths
// as already deleted.
func (s *SupabaseStorage) Remove(ctx context.Context, paths []string) error {
	for len(paths) > 0 {
		batch := paths
		if len(batch) > removeBatchSize {
			batch = batch[:removeBatchSize]
		}
		paths = paths[len(batch):]

		body, err := json.Marshal(map[string][]string{"prefixes": batch})
		if err != nil {
			return fmt.Errorf("failed to marshal remove request: %w", err)
		}
		endpoint := fmt.Sprintf("%s/object/%s", s.baseURL, s.bucket)
		req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to create remove request: %w", err)
		}
		s.authorize(req)
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("storage remove failed: %w", err)
		}
		if (resp.StatusCode < 200 || resp.StatusCode > 299) && resp.StatusCode != http.StatusNotFound {
			err := storageError("remove", strings.Join(batch, ","), resp)
			resp.Body.Close()
			return err
		}
		resp.Body.Close()
		s.logger.Debug("removed storage objects", "count", len(batch))
	}
	return nil
}

func (s *SupabaseStorage) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("apikey", s.serviceKey)
}

func storageError(op, path string, resp *http.Response) error {
	excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
	return fmt.Errorf("storage %s %q: status %d: %s", op, path, resp.StatusCode, strings.TrimSpace(string(excerpt)))
}
