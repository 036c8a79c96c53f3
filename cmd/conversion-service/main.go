// Package main runs the PDF-to-PNG conversion sidecar: a small chi server
// the dispatcher posts jobs to.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/atelierdocs/docuflow/internal/config"
	"github.com/atelierdocs/docuflow/internal/services"
)

const shutdownGrace = 10 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	config.LoadDotenv()

	serviceKey, err := config.RequireEnv("CONVERSION_SERVICE_KEY")
	if err != nil {
		slog.Error("Invalid configuration.", "error", err)
		os.Exit(1)
	}

	converter, err := services.NewConverterFromEnv(context.Background())
	if err != nil {
		slog.Error("Failed to initialize conversion service.", "error", err)
		os.Exit(1)
	}

	addr := ":" + config.GetEnv("PORT", "8080")
	srv := &http.Server{
		Addr:         addr,
		Handler:      newRouter(converter, serviceKey),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  time.Minute,
	}

	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("Conversion service listening.", "addr", addr)
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		slog.Error("Server failed.", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		slog.Info("Shutdown signal received.", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			slog.Error("Graceful shutdown failed, closing.", "error", err)
			srv.Close()
		}
	}
}

func newRouter(converter *services.ConverterFunction, serviceKey string) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy","service":"conversion-service"}`))
	})

	r.Group(func(r chi.Router) {
		r.Use(bearerAuth(serviceKey))
		r.Post("/process", handleProcess(converter))
	})

	return r
}

// bearerAuth rejects requests that do not carry the shared service key.
func bearerAuth(serviceKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer "+serviceKey {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func handleProcess(converter *services.ConverterFunction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req services.ConversionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "could not parse JSON"})
			return
		}
		if req.JobID == "" || req.PageID == "" || req.InputPath == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "jobId, pageId and inputPath are required"})
			return
		}

		outputPath, err := converter.Process(r.Context(), req)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "conversion failed", "details": err.Error(),
			})
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":    true,
			"outputPath": outputPath,
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}
