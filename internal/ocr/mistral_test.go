package ocr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMistralProvider_ExtractText(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices": [{"message": {"role": "assistant", "content": "Numéro d'amorce: 42"}}]
		}`))
	}))
	defer server.Close()

	provider := newMistralProviderWithBaseURL("test-key", server.URL)
	text, err := provider.ExtractText(context.Background(), []byte("fake page bytes"))

	require.NoError(t, err)
	assert.Equal(t, "Numéro d'amorce: 42", text)
	assert.Equal(t, "/chat/completions", gotPath)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, mistralModel, gotBody["model"])
}

func TestMistralProvider_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices": []}`))
	}))
	defer server.Close()

	provider := newMistralProviderWithBaseURL("test-key", server.URL)
	_, err := provider.ExtractText(context.Background(), []byte("page"))
	assert.ErrorIs(t, err, ErrEmptyResult)
}

func TestMistralProvider_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"message": "invalid api key"}}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	provider := newMistralProviderWithBaseURL("bad-key", server.URL)
	_, err := provider.ExtractText(context.Background(), []byte("page"))
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "mistral API call failed"))
}

func TestNewMistralProvider_MissingKey(t *testing.T) {
	t.Setenv("MISTRAL_API", "")
	_, err := NewMistralProvider()
	assert.ErrorIs(t, err, ErrMissingCredentials)
}
