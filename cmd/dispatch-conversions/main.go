package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"

	"github.com/atelierdocs/docuflow/internal/config"
	"github.com/atelierdocs/docuflow/internal/services"
)

var (
	dispatcherInstance *services.DispatcherFunction
	once               sync.Once
	initErr            error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	config.LoadDotenv()

	functions.HTTP("DispatchConversions", dispatchConversions)
}

// main is required by the Go Functions Framework.
func main() {}

// dispatchConversions runs one dispatch cycle over the pending conversion
// jobs. It is typically invoked by a scheduler.
func dispatchConversions(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		dispatcherInstance, initErr = services.NewDispatcherFromEnv(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to initialize service", "details": initErr.Error(),
		})
		return
	}

	processed, err := dispatcherInstance.Process(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "dispatch failed", "details": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"processed": processed,
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}
