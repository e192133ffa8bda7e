package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os/exec"
	"runtime"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/podflow/delivery-validation-service/internal/clientcfg"
	"github.com/podflow/delivery-validation-service/internal/db"
	"github.com/podflow/delivery-validation-service/internal/models"
	"github.com/podflow/delivery-validation-service/internal/ocr"
	"github.com/podflow/delivery-validation-service/internal/storage"
	"github.com/podflow/delivery-validation-service/internal/validation"
)

const (
	MaxUploadSize = 10 * 1024 * 1024 // 10MB
	Version       = "1.3.0"
)

// Handler handles HTTP requests for delivery document processing.
type Handler struct {
	config       *models.Config
	engine       *validation.Engine
	ocrEngine    ocr.Engine
	preprocessor *ocr.Preprocessor
	clientConfig *clientcfg.Loader
	logger       *slog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(config *models.Config, engine *validation.Engine, ocrEngine ocr.Engine, pre *ocr.Preprocessor, configs *clientcfg.Loader, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		config:       config,
		engine:       engine,
		ocrEngine:    ocrEngine,
		preprocessor: pre,
		clientConfig: configs,
		logger:       logger,
	}
}

// SetupRoutes configures the HTTP routes.
func (h *Handler) SetupRoutes() *mux.Router {
	router := mux.NewRouter()

	// Deliveries
	router.HandleFunc("/api/deliveries", h.CreateDelivery).Methods("POST")
	router.HandleFunc("/api/deliveries", h.ListDeliveries).Methods("GET")
	router.HandleFunc("/api/deliveries/{id}", h.GetDelivery).Methods("GET")
	router.HandleFunc("/api/deliveries/{id}/documents", h.UploadDocument).Methods("POST")
	router.HandleFunc("/api/deliveries/{id}/validate", h.ValidateDelivery).Methods("POST")
	router.HandleFunc("/api/deliveries/{id}/checklist", h.GetChecklist).Methods("GET")

	// Documents
	router.HandleFunc("/api/documents/{id}", h.GetDocument).Methods("GET")
	router.HandleFunc("/api/documents/{id}/override", h.OverrideDocument).Methods("POST")
	router.HandleFunc("/api/documents/{id}/image", h.GetDocumentImage).Methods("GET")

	// Client validation configuration
	router.HandleFunc("/api/clients/{id}/config", h.GetClientConfig).Methods("GET")
	router.HandleFunc("/api/clients/{id}/config", h.UpdateClientConfig).Methods("PUT")

	// Observability
	router.HandleFunc("/health", h.Health).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	return router
}

// HealthResponse is the health check response structure.
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Timestamp string            `json:"timestamp"`
	Uptime    string            `json:"uptime"`
	Memory    MemoryStats       `json:"memory"`
	Tesseract ServiceStatus     `json:"tesseract"`
	Magick    ServiceStatus     `json:"imageMagick"`
	Database  ServiceStatus     `json:"database"`
	Storage   ServiceStatus     `json:"storage"`
	OCR       map[string]string `json:"ocr"`
}

// MemoryStats reports process memory usage.
type MemoryStats struct {
	Allocated string `json:"allocated"`
	Total     string `json:"total"`
	System    string `json:"system"`
}

// ServiceStatus reports one dependency's availability.
type ServiceStatus struct {
	Available bool   `json:"available"`
	Error     string `json:"error,omitempty"`
}

var startTime = time.Now()

// Health reports dependency availability for monitoring.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	response := HealthResponse{
		Status:    "healthy",
		Version:   Version,
		Timestamp: time.Now().Format(time.RFC3339),
		Uptime:    time.Since(startTime).String(),
		Memory: MemoryStats{
			Allocated: fmt.Sprintf("%.2f MB", float64(m.Alloc)/1024/1024),
			Total:     fmt.Sprintf("%.2f MB", float64(m.TotalAlloc)/1024/1024),
			System:    fmt.Sprintf("%.2f MB", float64(m.Sys)/1024/1024),
		},
		Tesseract: checkBinary("tesseract"),
		Magick:    checkMagick(),
		Database:  h.checkDatabase(r),
		Storage:   checkStorage(),
		OCR: map[string]string{
			"language": h.config.OCR.Language,
		},
	}

	if !response.Tesseract.Available || !response.Database.Available {
		response.Status = "degraded"
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	json.NewEncoder(w).Encode(response)
}

func checkBinary(name string) ServiceStatus {
	if _, err := exec.LookPath(name); err != nil {
		return ServiceStatus{Available: false, Error: err.Error()}
	}
	return ServiceStatus{Available: true}
}

func checkMagick() ServiceStatus {
	if s := checkBinary("magick"); s.Available {
		return s
	}
	return checkBinary("convert")
}

func (h *Handler) checkDatabase(r *http.Request) ServiceStatus {
	if db.Pool == nil {
		return ServiceStatus{Available: false, Error: "not configured"}
	}
	ctx, cancel := contextWithTimeout(r, 2*time.Second)
	defer cancel()
	if err := db.Pool.Ping(ctx); err != nil {
		return ServiceStatus{Available: false, Error: err.Error()}
	}
	return ServiceStatus{Available: true}
}

func checkStorage() ServiceStatus {
	if storage.Client == nil {
		return ServiceStatus{Available: false, Error: "not configured"}
	}
	return ServiceStatus{Available: true}
}

func contextWithTimeout(r *http.Request, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), d)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
