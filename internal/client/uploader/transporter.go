package uploader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxErrorBody caps how much of an error response is read
const maxErrorBody = 64 * 1024

// ProgressFunc receives the bytes sent so far and the total size
type ProgressFunc func(loaded, total int64)

// Transporter sends file bytes to a negotiated storage URL with a single PUT
type Transporter struct {
	client *http.Client
}

// NewTransporter creates a new transporter. A nil client means http.DefaultClient.
func NewTransporter(client *http.Client) *Transporter {
	if client == nil {
		client = http.DefaultClient
	}
	return &Transporter{client: client}
}

// Transport PUTs the file to uploadURL with its content type. onProgress may be nil.
// Cancelling ctx aborts the request and yields ErrCancelled. A 413 yields
// *PayloadTooLargeError with the server's message, any other non-2xx *TransportError.
func (t *Transporter) Transport(ctx context.Context, uploadURL string, file File, onProgress ProgressFunc) error {
	if err := ctx.Err(); err != nil {
		return ErrCancelled
	}

	var body io.Reader = http.NoBody
	if file.Size > 0 {
		if file.Open == nil {
			return &TransportError{Err: fmt.Errorf("file %s has no content", file.Name)}
		}
		rc, err := file.Open()
		if err != nil {
			return &TransportError{Err: fmt.Errorf("failed to open %s: %w", file.Name, err)}
		}
		defer rc.Close()
		body = &progressReader{r: rc, total: file.Size, onProgress: onProgress}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, body)
	if err != nil {
		return &TransportError{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.ContentLength = file.Size
	req.Header.Set("Content-Type", file.contentType())

	resp, err := t.client.Do(req)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return ErrCancelled
		}
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		if onProgress != nil {
			onProgress(file.Size, file.Size)
		}
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	message := errorMessage(raw)

	if resp.StatusCode == http.StatusRequestEntityTooLarge {
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		return &PayloadTooLargeError{Message: message}
	}

	return &TransportError{StatusCode: resp.StatusCode, Body: message}
}

// errorMessage extracts {"error": "..."} from a response body, falling back to the raw text
func errorMessage(raw []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	return strings.TrimSpace(string(raw))
}

// progressReader reports the running byte count on every read
type progressReader struct {
	r          io.Reader
	loaded     int64
	total      int64
	onProgress ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.loaded += int64(n)
		if p.onProgress != nil {
			p.onProgress(p.loaded, p.total)
		}
	}
	return n, err
}

// percent converts a byte count into 0-100
func percent(loaded, total int64) int {
	if total <= 0 {
		return 100
	}
	return int(min(loaded*100/total, 100))
}
