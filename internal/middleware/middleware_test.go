package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponseWriter(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	rw := newResponseWriter(rec)
	assert.Equal(t, http.StatusOK, rw.statusCode)

	rw.WriteHeader(http.StatusNotFound)
	rw.WriteHeader(http.StatusInternalServerError)
	assert.Equal(t, http.StatusNotFound, rw.statusCode, "second WriteHeader is ignored")

	n, err := rw.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.EqualValues(t, 5, rw.bytesWritten)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSanitizeLogField(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name, in, want string
	}{
		{"plain", "/api/books/1", "/api/books/1"},
		{"newlines", "a\nb\rc", "a b c"},
		{"escape", "x\x1b[31mred", "x[31mred"},
		{"null", "a\x00b", "ab"},
		{"tab kept", "a\tb", "a\tb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeLogField(tt.in))
		})
	}
}

func TestFormatW3C(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/api/tree?path=byTitle", nil)
	req.RemoteAddr = "10.0.0.1:5000"
	req.Header.Set("User-Agent", `curl "8"`)
	rw := newResponseWriter(httptest.NewRecorder())
	rw.WriteHeader(http.StatusOK)
	_, _ = rw.Write([]byte("{}"))

	now := time.Date(2024, 3, 1, 12, 30, 5, 0, time.UTC)
	line := formatW3C(req, rw, 42*time.Millisecond, now)

	assert.Equal(t, `2024-03-01 12:30:05 10.0.0.1 GET /api/tree path=byTitle 200 2 42 - "curl ""8""" -`, line)
}

func TestShouldSkip(t *testing.T) {
	t.Parallel()

	quiet := LoggingConfig{SkipPaths: []string{"/metrics"}, LogHealthChecks: false}
	loud := DefaultLoggingConfig()

	assert.True(t, shouldSkip("/metrics", quiet))
	assert.True(t, shouldSkip("/healthz", quiet))
	assert.False(t, shouldSkip("/api/books/1", quiet))
	assert.False(t, shouldSkip("/healthz", loud))
}

func TestGetClientIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "1.1.1.1, 2.2.2.2"}, "3.3.3.3:1", "1.1.1.1"},
		{"real ip", map[string]string{"X-Real-IP": "4.4.4.4"}, "3.3.3.3:1", "4.4.4.4"},
		{"remote addr", nil, "5.5.5.5:8080", "5.5.5.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, getClientIP(req))
		})
	}
}

func TestLoggerPassesThrough(t *testing.T) {
	t.Parallel()

	handler := Logger(DefaultLoggingConfig())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("tea"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "tea", rec.Body.String())
}

func TestCompression(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		body           string
		contentType    string
		acceptEncoding string
		wantGzip       bool
	}{
		{"large json", strings.Repeat(`{"key":"value"}`, 200), "application/json", "gzip", true},
		{"json with charset", strings.Repeat(`{"k":1}`, 300), "application/json; charset=utf-8", "gzip, br", true},
		{"small json", `{"status":"ok"}`, "application/json", "gzip", false},
		{"jpeg cover", strings.Repeat("x", 4096), "image/jpeg", "gzip", false},
		{"client without gzip", strings.Repeat("x", 4096), "application/json", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			handler := Compression(DefaultCompressionConfig())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				w.WriteHeader(http.StatusCreated)
				// Two writes so buffering across calls is exercised.
				half := len(tt.body) / 2
				_, _ = w.Write([]byte(tt.body[:half]))
				_, _ = w.Write([]byte(tt.body[half:]))
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/tree", nil)
			if tt.acceptEncoding != "" {
				req.Header.Set("Accept-Encoding", tt.acceptEncoding)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusCreated, rec.Code)
			if !tt.wantGzip {
				assert.Empty(t, rec.Header().Get("Content-Encoding"))
				assert.Equal(t, tt.body, rec.Body.String())
				return
			}
			assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
			zr, err := gzip.NewReader(rec.Body)
			require.NoError(t, err)
			plain, err := io.ReadAll(zr)
			require.NoError(t, err)
			assert.Equal(t, tt.body, string(plain))
		})
	}
}

func TestCompressionFlushStreamsUncompressed(t *testing.T) {
	t.Parallel()

	handler := Compression(DefaultCompressionConfig())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.(http.Flusher).Flush()
		_, _ = w.Write([]byte("event: found\n\n"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.True(t, rec.Flushed)
	assert.Empty(t, rec.Header().Get("Content-Encoding"))
	assert.Equal(t, "event: found\n\n", rec.Body.String())
}

func TestRouteLabel(t *testing.T) {
	t.Parallel()

	var labels []string
	router := mux.NewRouter()
	router.Use(Metrics(DefaultMetricsConfig()))
	router.HandleFunc("/api/books/{id:[0-9]+}", func(w http.ResponseWriter, r *http.Request) {
		labels = append(labels, routeLabel(r))
		w.WriteHeader(http.StatusNotFound)
	}).Methods(http.MethodGet)

	for _, id := range []string{"1", "2", "3"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/books/"+id, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	}
	assert.Equal(t, []string{"/api/books/{id:[0-9]+}", "/api/books/{id:[0-9]+}", "/api/books/{id:[0-9]+}"}, labels)

	outside := httptest.NewRequest(http.MethodGet, "/api/books/7/cover", nil)
	assert.Equal(t, "/api/books/7/{path}", routeLabel(outside))
}

func TestMetricsSkipPaths(t *testing.T) {
	t.Parallel()

	called := false
	handler := Metrics(DefaultMetricsConfig())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		_, isMetricsWriter := w.(*metricsResponseWriter)
		assert.False(t, isMetricsWriter, "skipped paths are not wrapped")
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.True(t, called)
}

func TestMetricsResponseWriterFlush(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	rw := newMetricsResponseWriter(rec)
	rw.WriteHeader(http.StatusAccepted)
	rw.Flush()

	assert.Equal(t, http.StatusAccepted, rw.statusCode)
	assert.True(t, rec.Flushed)
}

func TestNormalizePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path, want string
	}{
		{"/api/stats", "/api/stats"},
		{"/api/books/12", "/api/books/12"},
		{"/api/books/12/cover", "/api/books/12/{path}"},
		{"/", "/"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizePath(tt.path), tt.path)
	}
}
