package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"

	"github.com/atelierdocs/docuflow/internal/config"
	"github.com/atelierdocs/docuflow/internal/services"
)

var (
	processorInstance *services.ProcessorFunction
	once              sync.Once
	initErr           error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	config.LoadDotenv()

	functions.HTTP("ProcessDocument", processDocument)
	functions.HTTP("CheckDocumentStatus", checkDocumentStatus)
	functions.CloudEvent("ProcessUploadedDocument", processUploadedDocument)
}

// main is required by the Go Functions Framework.
func main() {}

func instance() (*services.ProcessorFunction, error) {
	once.Do(func() {
		processorInstance, initErr = services.NewProcessorFromEnv(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
	}
	return processorInstance, initErr
}

type documentRequest struct {
	DocumentID string `json:"documentId"`
}

func parseDocumentID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	var req documentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DocumentID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "documentId is required"})
		return uuid.Nil, false
	}
	id, err := uuid.Parse(req.DocumentID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "documentId must be a UUID"})
		return uuid.Nil, false
	}
	return id, true
}

// processDocument runs the OCR pipeline for one document.
func processDocument(w http.ResponseWriter, r *http.Request) {
	processor, err := instance()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to initialize service", "details": err.Error(),
		})
		return
	}

	id, ok := parseDocumentID(w, r)
	if !ok {
		return
	}

	result, err := processor.Process(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "processing failed", "details": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":        true,
		"message":        "Document traité avec succès",
		"pages":          result.Pages,
		"extracted_text": result.ExtractedText,
	})
}

// checkDocumentStatus reports and, where OCR has finished, advances the
// document's processing status.
func checkDocumentStatus(w http.ResponseWriter, r *http.Request) {
	processor, err := instance()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to initialize service", "details": err.Error(),
		})
		return
	}

	id, ok := parseDocumentID(w, r)
	if !ok {
		return
	}

	status, message, err := processor.CheckStatus(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "status check failed", "details": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"status":  status,
		"message": message,
	})
}

// processUploadedDocument handles a storage object-finalized event for the
// documents bucket.
func processUploadedDocument(ctx context.Context, e cloudevents.Event) error {
	processor, err := instance()
	if err != nil {
		return err
	}

	var event services.StorageEvent
	if err := json.Unmarshal(e.Data(), &event); err != nil {
		slog.Error("Failed to unmarshal event data", "error", err, "data", string(e.Data()))
		return err
	}
	return processor.ProcessUploaded(ctx, event)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}
