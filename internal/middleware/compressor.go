package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/drstein77/billing/internal/compress"
	"github.com/drstein77/billing/internal/models"
)

type archiveTypeKey struct{}

// ArchiveTypeMiddleware reads the archiveType query parameter (zip or tar,
// zip by default) and makes it available through ArchiveType.
func ArchiveTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		archiveType := r.URL.Query().Get("archiveType")
		if archiveType != compress.TypeTar && archiveType != compress.TypeZip {
			archiveType = compress.TypeZip // Default value
		}

		ctx := context.WithValue(r.Context(), archiveTypeKey{}, archiveType)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ArchiveType returns the archive type chosen by ArchiveTypeMiddleware.
func ArchiveType(ctx context.Context) string {
	if archiveType, ok := ctx.Value(archiveTypeKey{}).(string); ok {
		return archiveType
	}
	return compress.TypeZip
}

// UnpackCSVMiddleware replaces the request body with the CSV file found in the
// uploaded archive. Must run after ArchiveTypeMiddleware.
func UnpackCSVMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cr, err := compress.NewReader(ArchiveType(r.Context()), r.Body)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(models.ErrorResponse{Error: "Invalid archive: " + err.Error()})
			return
		}
		defer cr.Close()

		r.Body = cr
		next.ServeHTTP(w, r)
	})
}
