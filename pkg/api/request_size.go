// SPDX-FileCopyrightText: Copyright 2026 ApexID, Inc.
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"errors"
	"io"
	"net/http"
)

// defaultMaxRequestBodySize bounds request bodies; token state maps are
// persisted verbatim, so unbounded bodies would flow into the store.
const defaultMaxRequestBodySize = 1 << 20 // 1MB

// requestBodySizeLimitMiddleware rejects requests whose body exceeds
// maxSize. Requests that declare an oversized Content-Length are refused
// up front; bodies that exceed the limit mid-stream are cut off by
// http.MaxBytesReader, and the handler's resulting decode failure is
// reported to the client as 413 instead of 400.
func requestBodySizeLimitMiddleware(maxSize int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxSize {
				http.Error(w, "Request Entity Too Large", http.StatusRequestEntityTooLarge)
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, maxSize)

			next.ServeHTTP(&bodySizeResponseWriter{ResponseWriter: w, body: r.Body}, r)
		})
	}
}

// bodySizeResponseWriter rewrites a handler's 400 response to 413 when
// the request body was truncated at the size limit, so clients see the
// real reason their request failed.
type bodySizeResponseWriter struct {
	http.ResponseWriter
	body        io.ReadCloser
	wroteHeader bool
}

func (b *bodySizeResponseWriter) WriteHeader(statusCode int) {
	if b.wroteHeader {
		return
	}
	b.wroteHeader = true
	if statusCode == http.StatusBadRequest && b.bodyLimitExceeded() {
		statusCode = http.StatusRequestEntityTooLarge
	}
	b.ResponseWriter.WriteHeader(statusCode)
}

func (b *bodySizeResponseWriter) Write(p []byte) (int, error) {
	if !b.wroteHeader {
		b.WriteHeader(http.StatusOK)
	}
	return b.ResponseWriter.Write(p)
}

// bodyLimitExceeded drains whatever the handler left unread. Handlers
// bail out on the first decode error, which for an oversized body can
// happen before the read reaches the cap, so the remainder has to be
// consumed to tell a malformed body from a truncated one.
func (b *bodySizeResponseWriter) bodyLimitExceeded() bool {
	_, err := io.Copy(io.Discard, b.body)
	var maxBytesErr *http.MaxBytesError
	return errors.As(err, &maxBytesErr)
}
