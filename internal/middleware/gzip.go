package middleware

import (
	"compress/gzip"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

// CompressedTypes are the response content types compressed by the router.
var CompressedTypes = []string{"application/json", "text/plain", "text/html"}

// GzipReader transparently decompresses gzipped request bodies, so batch
// requests can be uploaded compressed.
func GzipReader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.EqualFold(r.Header.Get("Content-Encoding"), "gzip") {
			next.ServeHTTP(w, r)
			return
		}

		gzReader, err := gzip.NewReader(r.Body)
		if err != nil {
			log.Debug().Err(err).Msg("Failed to open gzipped request body")
			http.Error(w, "Failed to read gzipped request", http.StatusBadRequest)
			return
		}
		defer gzReader.Close()

		r.Body = gzReader
		r.Header.Del("Content-Encoding")
		r.ContentLength = -1

		next.ServeHTTP(w, r)
	})
}
