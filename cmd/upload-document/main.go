package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/google/uuid"

	"github.com/atelierdocs/docuflow/internal/config"
	"github.com/atelierdocs/docuflow/internal/services"
	"github.com/atelierdocs/docuflow/internal/store"
)

// maxUploadBytes bounds the multipart form size of one upload.
const maxUploadBytes = 32 << 20

var (
	uploaderInstance *services.UploaderFunction
	once             sync.Once
	initErr          error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	config.LoadDotenv()

	functions.HTTP("UploadDocument", uploadDocument)
}

// main is required by the Go Functions Framework.
func main() {}

// uploadDocument accepts a multipart PDF upload with its classification
// metadata, stores the file and creates the document row.
func uploadDocument(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		uploaderInstance, initErr = services.NewUploaderFromEnv(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to initialize service", "details": initErr.Error(),
		})
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "could not parse multipart form"})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "file is required"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "could not read file"})
		return
	}

	req := services.UploadRequest{
		FileName:     header.Filename,
		Data:         data,
		Sector:       store.DocumentSector(r.FormValue("sector")),
		DocumentType: store.DocumentType(r.FormValue("document_type")),
	}
	if v := r.FormValue("atelier_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "atelier_id must be a UUID"})
			return
		}
		req.AtelierID = &id
	}
	if v := r.FormValue("liaison_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "liaison_id must be a UUID"})
			return
		}
		req.LiaisonID = &id
	}
	if v := r.FormValue("client_visible"); v != "" {
		visible, err := strconv.ParseBool(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "client_visible must be a boolean"})
			return
		}
		req.ClientVisible = visible
	}

	doc, err := uploaderInstance.Process(r.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		if doc == nil {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, map[string]string{
			"error": "upload failed", "details": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"document": doc,
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}
