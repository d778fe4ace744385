package vision

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(url string) *Client {
	c := New("test-key", "model-primary", "model-fallback")
	c.messagesURL = url
	return c
}

const analysisBody = `{
	"content": [{"type": "text", "text": "{\"overall_rating\": \"Good\", \"items\": [{\"name\": \"Walls\", \"rating\": \"Good\", \"notes\": \"Clean\"}], \"summary\": \"Room is fine.\", \"flags\": []}"}]
}`

func TestAnalyzeRoom_Fallback(t *testing.T) {
	t.Run("отказ основной модели уходит на резервную", func(t *testing.T) {
		var calledModels []string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req messagesRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			calledModels = append(calledModels, req.Model)

			if req.Model == "model-primary" {
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error": {"type": "overloaded_error", "message": "Overloaded"}}`))
				return
			}
			w.Write([]byte(analysisBody))
		}))
		defer srv.Close()

		client := newTestClient(srv.URL)
		got, err := client.AnalyzeRoom(context.Background(), "Kitchen", "Move-In", [][]byte{[]byte("jpegdata")})
		require.NoError(t, err)
		assert.Equal(t, []string{"model-primary", "model-fallback"}, calledModels)
		assert.Equal(t, "Good", got.OverallRating)
		require.Len(t, got.Items, 1)
		assert.Equal(t, "Walls", got.Items[0].Name)
	})

	t.Run("успех основной модели не трогает резервную", func(t *testing.T) {
		var calls int
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.Write([]byte(analysisBody))
		}))
		defer srv.Close()

		client := newTestClient(srv.URL)
		got, err := client.AnalyzeRoom(context.Background(), "Kitchen", "Move-In", [][]byte{[]byte("jpegdata")})
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
		assert.Equal(t, "Good", got.OverallRating)
	})

	t.Run("отказ обеих моделей возвращает последнюю ошибку", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error": {"type": "api_error", "message": "internal error"}}`))
		}))
		defer srv.Close()

		client := newTestClient(srv.URL)
		_, err := client.AnalyzeRoom(context.Background(), "Kitchen", "Move-In", [][]byte{[]byte("jpegdata")})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "internal error")
	})

	t.Run("запрос несёт ключ и версию API", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
			assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
			w.Write([]byte(analysisBody))
		}))
		defer srv.Close()

		client := newTestClient(srv.URL)
		_, err := client.AnalyzeRoom(context.Background(), "Kitchen", "Move-In", [][]byte{[]byte("jpegdata")})
		require.NoError(t, err)
	})
}
