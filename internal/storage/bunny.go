package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
)

const (
	bunnyAPIBaseURL   = "https://video.bunnycdn.com"
	bunnyTusEndpoint  = "https://video.bunnycdn.com/tusupload"
	bunnyEmbedBaseURL = "https://iframe.mediadelivery.net/embed"
)

// ErrVideosDisabled is returned when Bunny Stream credentials are not configured
var ErrVideosDisabled = errors.New("video storage is not configured")

// UploadTicket authorizes a browser to upload one video directly to Bunny over TUS
type UploadTicket struct {
	VideoID   string
	LibraryID string
	ExpiresAt int64
	Signature string
	Endpoint  string
	EmbedURL  string
}

// VideoStore creates Bunny Stream videos and signs upload tickets for them
type VideoStore struct {
	libraryID    string
	apiKey       string
	ticketExpiry time.Duration
	baseURL      string
	httpClient   *http.Client
	logger       *zap.Logger
	now          func() time.Time
}

// NewVideoStore creates a VideoStore
func NewVideoStore(libraryID, apiKey string, ticketExpiry time.Duration, logger *zap.Logger) *VideoStore {
	return &VideoStore{
		libraryID:    libraryID,
		apiKey:       apiKey,
		ticketExpiry: ticketExpiry,
		baseURL:      bunnyAPIBaseURL,
		httpClient:   &http.Client{Timeout: 15 * time.Second},
		logger:       logger,
		now:          time.Now,
	}
}

// Enabled reports whether videos can be created
func (s *VideoStore) Enabled() bool {
	return s.libraryID != "" && s.apiKey != ""
}

// CreateVideo registers an empty video in the library and returns its guid
func (s *VideoStore) CreateVideo(ctx context.Context, title string) (string, error) {
	if !s.Enabled() {
		return "", ErrVideosDisabled
	}

	payload, err := json.Marshal(map[string]string{"title": title})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/library/%s/videos", s.baseURL, s.libraryID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("AccessKey", s.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to create video: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.logger.Warn("bunny create video failed",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body),
		)
		return "", fmt.Errorf("bunny returned status %d", resp.StatusCode)
	}

	var video struct {
		GUID string `json:"guid"`
	}
	if err := json.Unmarshal(body, &video); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if video.GUID == "" {
		return "", fmt.Errorf("bunny returned an empty video guid")
	}

	return video.GUID, nil
}

// NewUploadTicket signs a TUS upload ticket for an existing video
func (s *VideoStore) NewUploadTicket(videoID string) *UploadTicket {
	expiresAt := s.now().Add(s.ticketExpiry).Unix()
	return &UploadTicket{
		VideoID:   videoID,
		LibraryID: s.libraryID,
		ExpiresAt: expiresAt,
		Signature: SignUpload(s.libraryID, s.apiKey, expiresAt, videoID),
		Endpoint:  bunnyTusEndpoint,
		EmbedURL:  s.EmbedURL(videoID),
	}
}

// EmbedURL returns the player URL of a video
func (s *VideoStore) EmbedURL(videoID string) string {
	return fmt.Sprintf("%s/%s/%s", bunnyEmbedBaseURL, s.libraryID, videoID)
}

// SignUpload computes the Bunny TUS authorization signature:
// sha256 hex of library id, api key, expiration time and video id concatenated.
func SignUpload(libraryID, apiKey string, expiresAt int64, videoID string) string {
	sum := sha256.Sum256([]byte(libraryID + apiKey + strconv.FormatInt(expiresAt, 10) + videoID))
	return hex.EncodeToString(sum[:])
}
