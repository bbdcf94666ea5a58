// Package api is the REST client of the course media backend
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/japanesestudent/media-uploader/internal/middlewares"
	"github.com/japanesestudent/media-uploader/internal/models"
	"go.uber.org/zap"
)

const maxErrorBody = 64 * 1024

// APIError is a non-2xx response or a {"success": false} envelope
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// Client calls the media endpoints of the backend
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new client. A nil httpClient means http.DefaultClient.
func NewClient(baseURL, token string, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: httpClient,
		logger:     logger,
	}
}

// scopePath returns /api/v1/courses/{id} or /api/v1/units/{id}
func scopePath(scope models.OwnerScope) string {
	collection := "units"
	if scope.IsCourse() {
		collection = "courses"
	}
	return fmt.Sprintf("/api/v1/%s/%s", collection, url.PathEscape(scope.ID))
}

// CreateUploadIntent requests an upload slot for one file
func (c *Client) CreateUploadIntent(ctx context.Context, scope models.OwnerScope, kind models.MediaKind, file models.UploadIntentFile) (*models.UploadIntentResponse, error) {
	req := models.UploadIntentRequest{Kind: kind, Files: []models.UploadIntentFile{file}}
	resp := &models.UploadIntentResponse{}
	if err := c.do(ctx, http.MethodPost, scopePath(scope)+"/media/uploads", req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// FinalizeUpload persists the size of an uploaded unit media
func (c *Client) FinalizeUpload(ctx context.Context, scope models.OwnerScope, mediaID string, size int64) error {
	path := fmt.Sprintf("%s/media/%s/finalize", scopePath(scope), url.PathEscape(mediaID))
	return c.doStatus(ctx, http.MethodPost, path, models.FinalizeRequest{FileSize: size})
}

// ListMedia retrieves the media of a scope
func (c *Client) ListMedia(ctx context.Context, scope models.OwnerScope) ([]models.MediaAsset, error) {
	assets := make([]models.MediaAsset, 0)
	if err := c.do(ctx, http.MethodGet, scopePath(scope)+"/media", nil, &assets); err != nil {
		return nil, err
	}
	for i := range assets {
		assets[i].Scope = scope
	}
	return assets, nil
}

// DeleteMedia removes a media asset
func (c *Client) DeleteMedia(ctx context.Context, scope models.OwnerScope, mediaID string) error {
	path := fmt.Sprintf("%s/media/%s", scopePath(scope), url.PathEscape(mediaID))
	return c.doStatus(ctx, http.MethodDelete, path, nil)
}

// NotifyUploadStatus reports the outcome of a course media upload
func (c *Client) NotifyUploadStatus(ctx context.Context, scope models.OwnerScope, mediaID string, status models.UploadStatus) error {
	if !scope.IsCourse() {
		return fmt.Errorf("upload status is only reported for course media")
	}
	path := fmt.Sprintf("%s/media/%s/status", scopePath(scope), url.PathEscape(mediaID))
	return c.doStatus(ctx, http.MethodPost, path, models.UploadStatusRequest{Status: status})
}

// doStatus performs a call answered with the {"success": ...} envelope
func (c *Client) doStatus(ctx context.Context, method, path string, body any) error {
	// 204 and bodies without the flag count as success
	status := models.StatusResponse{Success: true}
	if err := c.do(ctx, method, path, body, &status); err != nil {
		return err
	}
	if !status.Success {
		message := status.Error
		if message == "" {
			message = "request was not successful"
		}
		return &APIError{Method: method, Path: path, StatusCode: http.StatusOK, Message: message}
	}
	return nil
}

// do sends a JSON request and decodes a JSON response into out
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if requestID := middlewares.GetRequestID(ctx); requestID != "" {
		req.Header.Set(middlewares.RequestIDHeader, requestID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("backend call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{Method: method, Path: path, StatusCode: resp.StatusCode, Message: errorMessage(raw, resp.Status)}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

func errorMessage(raw []byte, fallback string) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	if len(bytes.TrimSpace(raw)) > 0 {
		return string(bytes.TrimSpace(raw))
	}
	return fallback
}
