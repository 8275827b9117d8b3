package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/drstein77/billing/internal/compress"
	"github.com/drstein77/billing/internal/logger"
	"github.com/drstein77/billing/internal/metrics"
	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestArchiveTypeMiddleware(t *testing.T) {
	tests := map[string]string{
		"/export":                 compress.TypeZip,
		"/export?archiveType=tar": compress.TypeTar,
		"/export?archiveType=zip": compress.TypeZip,
		"/export?archiveType=7z":  compress.TypeZip,
	}

	for target, want := range tests {
		t.Run(target, func(t *testing.T) {
			var got string
			h := ArchiveTypeMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = ArchiveType(r.Context())
			}))

			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, target, nil))
			assert.Equal(t, want, got)
		})
	}
}

func TestUnpackCSVMiddleware(t *testing.T) {
	var archive bytes.Buffer
	w := compress.NewTarWriter(&archive, "stock.csv")
	_, err := io.WriteString(w, "1,5\n")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	var body string
	h := ArchiveTypeMiddleware(UnpackCSVMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		body = string(b)
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/import?archiveType=tar", &archive))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1,5\n", body)
}

func TestUnpackCSVMiddlewareRejectsGarbage(t *testing.T) {
	called := false
	h := ArchiveTypeMiddleware(UnpackCSVMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/import", bytes.NewBufferString("plain text")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid archive")
	assert.False(t, called)
}

func TestRequestID(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	log := logger.NewFromZap(zap.New(core))

	h := RequestID(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context(), nil).Info("inside")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	generated := rec.Header().Get(RequestIDHeader)
	assert.NotEmpty(t, generated)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "given-id")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "given-id", rec.Header().Get(RequestIDHeader))

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, generated, logs.All()[0].ContextMap()["request_id"])
	assert.Equal(t, "given-id", logs.All()[1].ContextMap()["request_id"])
}

func TestMetricsAndRequestLogger(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry("test", reg, reg)
	core, logs := observer.New(zap.InfoLevel)
	log := logger.NewFromZap(zap.New(core))

	r := chi.NewRouter()
	r.Use(Metrics(m))
	r.Use(RequestLogger(log))
	r.Get("/bill/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Get("/products", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("[]"))
	})

	for _, target := range []string{"/bill/1", "/bill/2", "/products"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, target, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/bill/{id}", "404")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/products", "200")))

	require.Equal(t, 3, logs.Len())
	assert.Equal(t, int64(404), logs.All()[0].ContextMap()["status"])
}
