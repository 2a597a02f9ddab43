// Provides middleware for standardizing HTTP handlers.

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/maruel/musicmark/internal/server/dto"
	"github.com/maruel/musicmark/internal/server/ratelimit"
	"github.com/maruel/musicmark/internal/storage"
)

// getClientIP extracts the client address, honoring X-Forwarded-For set by
// a reverse proxy.
func getClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// wrap adapts a typed handler function to http.Handler.
//
// The function signature is func(ctx, user, *In) (*Out, error) where In is
// populated from the JSON body plus `path:"..."` and `query:"..."` struct
// tags, and Out is encoded as JSON. auth may be nil for public endpoints;
// otherwise the authenticated user is passed to fn. Errors from fn are
// mapped through dto.FromStorageError.
func wrap[In any, PtrIn interface {
	*In
	dto.Validatable
}, Out any](s *Server, auth authFunc, fn func(context.Context, *storage.User, PtrIn) (*Out, error)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil {
			result := s.limiter.Allow(getClientIP(r))
			w = ratelimit.NewResponseWriter(w, result)
			if !result.Allowed {
				writeError(w, dto.NewAPIError(http.StatusTooManyRequests, dto.ErrorCodeRateLimited, "Too many requests"))
				return
			}
		}

		var user *storage.User
		if auth != nil {
			var ok bool
			if user, ok = auth(w, r); !ok {
				return
			}
		}

		ctx := r.Context()
		input := new(In)
		if !readAndDecodeBody(ctx, w, r, input, s.cfg.MaxRequestBodyBytes) {
			return
		}
		populatePathParams(r, input)
		populateQueryParams(r, input)

		if err := PtrIn(input).Validate(); err != nil {
			writeError(w, dto.FromStorageError(err))
			return
		}

		output, err := fn(ctx, user, PtrIn(input))
		if err != nil {
			apiErr := dto.FromStorageError(err)
			if apiErr.StatusCode() >= http.StatusInternalServerError {
				slog.ErrorContext(ctx, "Handler error", "method", r.Method, "path", r.URL.Path, "err", err)
			}
			writeError(w, apiErr)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(output); err != nil {
			slog.ErrorContext(ctx, "Failed to encode response", "err", err)
		}
	})
}

// readAndDecodeBody reads the request body with a size limit and decodes
// JSON into input. Returns false if an error was written to the response.
func readAndDecodeBody[In any](ctx context.Context, w http.ResponseWriter, r *http.Request, input *In, maxBytes int64) bool {
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}
	body, err := io.ReadAll(r.Body)
	if err2 := r.Body.Close(); err == nil {
		err = err2
	}
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, dto.NewAPIError(http.StatusRequestEntityTooLarge, dto.ErrorCodeValidationFailed, "Request body too large"))
			return false
		}
		slog.ErrorContext(ctx, "Failed to read request body", "err", err)
		writeError(w, dto.BadRequest("Failed to read request body"))
		return false
	}
	if len(body) > 0 {
		if err := json.NewDecoder(bytes.NewReader(body)).Decode(input); err != nil {
			writeError(w, dto.BadRequest("Invalid request body").Wrap(err))
			return false
		}
	}
	return true
}

// populatePathParams extracts path parameters into struct fields tagged
// with `path:"paramName"`.
func populatePathParams(r *http.Request, input any) {
	val := reflect.ValueOf(input)
	if val.Kind() != reflect.Pointer {
		return
	}
	elem := val.Elem()
	if elem.Kind() != reflect.Struct {
		return
	}
	typ := elem.Type()
	for i := range typ.NumField() {
		field := typ.Field(i)
		tag := field.Tag.Get("path")
		if tag == "" {
			continue
		}
		paramValue := r.PathValue(tag)
		if paramValue == "" {
			continue
		}
		if field.Type.Kind() == reflect.String {
			elem.Field(i).SetString(paramValue)
		}
	}
}

// populateQueryParams extracts query parameters into struct fields tagged
// with `query:"paramName"`.
func populateQueryParams(r *http.Request, input any) {
	val := reflect.ValueOf(input)
	if val.Kind() != reflect.Pointer {
		return
	}
	elem := val.Elem()
	if elem.Kind() != reflect.Struct {
		return
	}
	query := r.URL.Query()
	typ := elem.Type()
	for i := range typ.NumField() {
		field := typ.Field(i)
		tag := field.Tag.Get("query")
		if tag == "" {
			continue
		}
		paramValue := query.Get(tag)
		if paramValue == "" {
			continue
		}
		fieldVal := elem.Field(i)
		switch field.Type.Kind() { //nolint:exhaustive // Only string and int params exist
		case reflect.String:
			fieldVal.SetString(paramValue)
		case reflect.Int, reflect.Int64:
			if intVal, err := strconv.ParseInt(paramValue, 10, 64); err == nil {
				fieldVal.SetInt(intVal)
			}
		}
	}
}

// writeError writes an APIError as the standard JSON error envelope.
func writeError(w http.ResponseWriter, apiErr *dto.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.StatusCode())
	_ = json.NewEncoder(w).Encode(&dto.ErrorResponse{
		Error: dto.ErrorDetails{Code: apiErr.Code(), Message: apiErr.Error()},
	})
}
