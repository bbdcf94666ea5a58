package middlewares

import (
	"net/http"
)

// PayloadTooLargeMessage is the error message sent with 413 responses
const PayloadTooLargeMessage = "File too large"

// RequestSizeLimitMiddleware rejects bodies larger than maxRequestSize bytes with 413.
// Bodies without a declared length are capped with http.MaxBytesReader; handlers
// detect the overflow through *http.MaxBytesError.
func RequestSizeLimitMiddleware(maxRequestSize int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxRequestSize {
				writeJSONError(w, http.StatusRequestEntityTooLarge, PayloadTooLargeMessage)
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, maxRequestSize)
			next.ServeHTTP(w, r)
		})
	}
}
