package uploader

import (
	"errors"
	"fmt"
)

var (
	// ErrCancelled reports that a call was aborted by CancelAll or by the batch context.
	// It marks the file failed without a user-facing message.
	ErrCancelled = errors.New("upload cancelled")
	// ErrNoFiles is returned by UploadBatch for an empty file list
	ErrNoFiles = errors.New("no files to upload")
	// ErrEmptyFileName is returned for files without a name
	ErrEmptyFileName = errors.New("file name is required")
	// ErrLedgerInUse is returned when a ledger still holds entries of another batch
	ErrLedgerInUse = errors.New("ledger is in use by another batch")
	// ErrFinalizeCourseScope is returned when finalization is requested for course media
	ErrFinalizeCourseScope = errors.New("finalize is only supported for unit media")
)

// NegotiationError reports that the backend refused or could not issue an upload intent
type NegotiationError struct {
	FileName string
	Err      error
}

func (e *NegotiationError) Error() string {
	return fmt.Sprintf("failed to negotiate upload for %q: %v", e.FileName, e.Err)
}

func (e *NegotiationError) Unwrap() error { return e.Err }

// TransportError reports a network or storage failure during the byte PUT.
// StatusCode is 0 when no response was received.
type TransportError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upload failed with status %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("upload failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// PayloadTooLargeError reports a 413 from storage; Message is the server's text
type PayloadTooLargeError struct {
	Message string
}

func (e *PayloadTooLargeError) Error() string {
	return e.Message
}

// FinalizationError reports a failed finalize call. It never fails a file.
type FinalizationError struct {
	MediaID string
	Err     error
}

func (e *FinalizationError) Error() string {
	return fmt.Sprintf("failed to finalize media %s: %v", e.MediaID, e.Err)
}

func (e *FinalizationError) Unwrap() error { return e.Err }

// ReconciliationError reports a failed listing after a batch; per-file results stay valid
type ReconciliationError struct {
	Scope string
	Err   error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("failed to reconcile media for %s: %v", e.Scope, e.Err)
}

func (e *ReconciliationError) Unwrap() error { return e.Err }

// UserMessage returns the text shown to the user for a per-file error.
// Cancellations have no message; a 413 shows the server's message verbatim.
func UserMessage(err error) string {
	if err == nil || errors.Is(err, ErrCancelled) {
		return ""
	}

	var tooLarge *PayloadTooLargeError
	if errors.As(err, &tooLarge) {
		return tooLarge.Message
	}

	var negotiation *NegotiationError
	if errors.As(err, &negotiation) {
		return "could not start upload"
	}

	return "upload failed"
}

// IsCancelled reports whether err is a cancellation
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}
