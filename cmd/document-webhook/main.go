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
	webhookInstance *services.WebhookFunction
	once            sync.Once
	initErr         error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	config.LoadDotenv()

	functions.HTTP("DocumentWebhook", documentWebhook)
}

// main is required by the Go Functions Framework.
func main() {}

type webhookRequest struct {
	DocumentID      string            `json:"documentId"`
	ExtractedValues map[string]string `json:"extracted_values"`
}

// documentWebhook receives the business fields extracted from a processed
// document and applies them to the document row.
func documentWebhook(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		webhookInstance, initErr = services.NewWebhookFromEnv(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to initialize service", "details": initErr.Error(),
		})
		return
	}

	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DocumentID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "documentId is required"})
		return
	}
	id, err := uuid.Parse(req.DocumentID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "documentId must be a UUID"})
		return
	}

	if err := webhookInstance.Process(r.Context(), id, req.ExtractedValues); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "webhook processing failed", "details": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}
