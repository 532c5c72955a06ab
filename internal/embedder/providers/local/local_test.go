package local

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemo-org/mnemo/internal/embedder"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("NoAPIKeyRequired", func(t *testing.T) {
		t.Parallel()
		p, err := New(embedder.Config{Model: "nomic-embed-text"})
		require.NoError(t, err)
		assert.Equal(t, "local", p.Name())
	})

	t.Run("RequiresModel", func(t *testing.T) {
		t.Parallel()
		_, err := New(embedder.Config{})
		assert.ErrorIs(t, err, embedder.ErrInvalidParameter)
	})
}

func TestEmbed(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Empty(t, r.Header.Get("Authorization"))
		resp := embeddingResponse{}
		for i := range req.Input {
			resp.Data = append(resp.Data, embeddingData{Index: i, Embedding: []float32{float32(i)}})
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	t.Cleanup(srv.Close)

	p, err := New(embedder.Config{Model: "nomic-embed-text", BaseURL: srv.URL})
	require.NoError(t, err)

	vecs, err := p.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float32{1}, vecs[1])
}
