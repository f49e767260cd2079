package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClient_GetJSON_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "demo", r.URL.Query().Get("app_id"))
		w.Write([]byte(`{"value": 42}`))
	}))
	defer server.Close()

	client := NewClient(server.Client(), 3)
	query := url.Values{}
	query.Set("app_id", "demo")

	var out struct {
		Value int `json:"value"`
	}
	require.NoError(t, client.GetJSON(context.Background(), server.URL, query, &out))
	require.Equal(t, 42, out.Value)
}

func TestClient_GetJSON_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"value": 1}`))
	}))
	defer server.Close()

	client := NewClient(server.Client(), 3)

	var out struct {
		Value int `json:"value"`
	}
	require.NoError(t, client.GetJSON(context.Background(), server.URL, nil, &out))
	require.Equal(t, 1, out.Value)
	require.Equal(t, int32(3), calls.Load())
}

func TestClient_GetJSON_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(server.Client(), 3)

	var out map[string]any
	err := client.GetJSON(context.Background(), server.URL, nil, &out)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrFetchFailed)
	require.Equal(t, int32(1), calls.Load())
}

func TestClient_GetJSON_ExhaustedRetriesSurfaceAsFetchFailure(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.Client(), 2)

	var out map[string]any
	err := client.GetJSON(context.Background(), server.URL, nil, &out)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrFetchFailed)
	// Initial attempt plus two retries.
	require.Equal(t, int32(3), calls.Load())
}

func TestClient_GetJSON_MalformedBodyIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`not json`))
	}))
	defer server.Close()

	client := NewClient(server.Client(), 3)

	var out map[string]any
	err := client.GetJSON(context.Background(), server.URL, nil, &out)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrFetchFailed)
	require.Equal(t, int32(1), calls.Load())
}
