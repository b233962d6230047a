package httputil

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStandardClient_DefaultTimeout(t *testing.T) {
	assert.Equal(t, 30*time.Second, NewStandardClient(0).Timeout)
	assert.Equal(t, 5*time.Second, NewStandardClient(5*time.Second).Timeout)
}

func TestDoJSON(t *testing.T) {
	mock := NewMockHTTPClient().
		AddResponse(http.StatusOK, `{"name":"Kedai"}`).
		AddResponse(http.StatusTooManyRequests, "slow down").
		AddResponse(http.StatusOK, "not json").
		AddErrorResponse(errors.New("connection refused"))

	newReq := func() *http.Request {
		req, err := http.NewRequest(http.MethodPost, "http://overpass.test/api", strings.NewReader("q"))
		require.NoError(t, err)
		return req
	}

	var out struct{ Name string }
	require.NoError(t, DoJSON(context.Background(), mock, newReq(), &out))
	assert.Equal(t, "Kedai", out.Name)

	err := DoJSON(context.Background(), mock, newReq(), &out)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusTooManyRequests, se.StatusCode)
	assert.Equal(t, "slow down", se.Body)

	err = DoJSON(context.Background(), mock, newReq(), &out)
	assert.ErrorContains(t, err, "failed to decode response")

	err = DoJSON(context.Background(), mock, newReq(), &out)
	assert.ErrorContains(t, err, "connection refused")

	assert.Equal(t, 4, mock.RequestCount())
	req, body := mock.GetRequest(0)
	require.NotNil(t, req)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "q", body)

	req, _ = mock.GetRequest(10)
	assert.Nil(t, req)
}

func TestDoJSON_ExhaustedMockReturnsEmptyOK(t *testing.T) {
	mock := NewMockHTTPClient()
	req, _ := http.NewRequest(http.MethodGet, "http://x.test", nil)
	assert.NoError(t, DoJSON(context.Background(), mock, req, nil))
}

func TestDoJSON_RealServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteJSONOK(w, map[string]int{"count": 3})
	}))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	var out struct{ Count int }
	require.NoError(t, DoJSON(context.Background(), NewStandardClient(time.Second), req, &out))
	assert.Equal(t, 3, out.Count)
}
