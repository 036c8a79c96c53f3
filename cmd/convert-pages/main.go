package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/google/uuid"

	"github.com/atelierdocs/docuflow/internal/config"
	"github.com/atelierdocs/docuflow/internal/services"
)

var (
	registrarInstance *services.RegistrarFunction
	once              sync.Once
	initErr           error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	config.LoadDotenv()

	functions.HTTP("RegisterPageConversion", registerPageConversion)
}

// main is required by the Go Functions Framework.
func main() {}

type registerRequest struct {
	DocumentID string `json:"documentId"`
}

// registerPageConversion splits a document into per-page PDFs and queues a
// PNG conversion job for each page.
func registerPageConversion(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		registrarInstance, initErr = services.NewRegistrarFromEnv(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to initialize service", "details": initErr.Error(),
		})
		return
	}

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DocumentID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "documentId is required"})
		return
	}
	id, err := uuid.Parse(req.DocumentID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "documentId must be a UUID"})
		return
	}

	pages, err := registrarInstance.Process(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "page registration failed", "details": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"pages":   pages,
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}
