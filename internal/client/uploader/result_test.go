package uploader

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBatchResult(t *testing.T) {
	tests := []struct {
		name            string
		result          BatchResult
		expectedOutcome Outcome
		expectedSummary string
		expectedMessage string
	}{
		{
			name:            "all succeeded",
			result:          BatchResult{SucceededIDs: []string{"a", "b", "c"}},
			expectedOutcome: OutcomeAllSucceeded,
			expectedSummary: "3 succeeded, 0 failed",
			expectedMessage: "3 succeeded",
		},
		{
			name:            "partial",
			result:          BatchResult{SucceededIDs: []string{"a"}, FailedNames: []string{"b.pdf"}},
			expectedOutcome: OutcomePartial,
			expectedSummary: "1 succeeded, 1 failed",
			expectedMessage: "1 succeeded, 1 failed",
		},
		{
			name:            "all failed",
			result:          BatchResult{FailedNames: []string{"a", "b"}},
			expectedOutcome: OutcomeAllFailed,
			expectedSummary: "0 succeeded, 2 failed",
			expectedMessage: "all failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expectedOutcome, tt.result.Outcome())
			assert.Equal(t, tt.expectedSummary, tt.result.Summary())
			assert.Equal(t, tt.expectedMessage, tt.result.Message())
		})
	}
}

func TestBatchResult_FailedEntries(t *testing.T) {
	result := BatchResult{Entries: []LedgerEntry{
		{Key: "m1", Status: StatusSuccessful},
		{Key: "local:1", Name: "b", Status: StatusFailed},
	}}

	failed := result.FailedEntries()

	assert.Len(t, failed, 1)
	assert.Equal(t, "b", failed[0].Name)
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"nil", nil, ""},
		{"cancelled", ErrCancelled, ""},
		{"too large", &PayloadTooLargeError{Message: "File too large"}, "File too large"},
		{"negotiation", &NegotiationError{FileName: "a", Err: errors.New("x")}, "could not start upload"},
		{"transport", &TransportError{StatusCode: 500}, "upload failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, UserMessage(tt.err))
		})
	}
}
