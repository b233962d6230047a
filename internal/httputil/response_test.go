package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriteHelpers(t *testing.T) {
	tests := []struct {
		name   string
		write  func(http.ResponseWriter)
		status int
		body   string
	}{
		{"ok", func(w http.ResponseWriter) { WriteJSONOK(w, map[string]string{"a": "b"}) }, http.StatusOK, `{"a":"b"}`},
		{"bad request", func(w http.ResponseWriter) { BadRequest(w, "nope") }, http.StatusBadRequest, `{"error":"nope"}`},
		{"not found", func(w http.ResponseWriter) { NotFound(w, "gone") }, http.StatusNotFound, `{"error":"gone"}`},
		{"internal", func(w http.ResponseWriter) { InternalServerError(w, "boom") }, http.StatusInternalServerError, `{"error":"boom"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.write(rec)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.JSONEq(t, tt.body, rec.Body.String())
		})
	}
}

func TestDecodeJSONBody(t *testing.T) {
	type payload struct {
		Lat float64 `json:"lat"`
	}
	tests := []struct {
		name   string
		body   string
		ok     bool
		status int
	}{
		{"valid", `{"lat": 3.1}`, true, http.StatusOK},
		{"unknown field", `{"lat": 3.1, "x": 1}`, false, http.StatusBadRequest},
		{"malformed", `{`, false, http.StatusBadRequest},
		{"too large", `{"lat": ` + strings.Repeat("1", 100) + `}`, false, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var p payload
			ok := DecodeJSONBody(rec, req, &p, 64)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.status, rec.Code)
			if !ok {
				var e map[string]string
				assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
				assert.NotEmpty(t, e["error"])
			}
		})
	}
}
