package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/podflow/delivery-validation-service/api"
	"github.com/podflow/delivery-validation-service/internal/auth"
	"github.com/podflow/delivery-validation-service/internal/clientcfg"
	"github.com/podflow/delivery-validation-service/internal/db"
	"github.com/podflow/delivery-validation-service/internal/logging"
	"github.com/podflow/delivery-validation-service/internal/models"
	"github.com/podflow/delivery-validation-service/internal/ocr"
	"github.com/podflow/delivery-validation-service/internal/storage"
	"github.com/podflow/delivery-validation-service/internal/validation"
)

func main() {
	// Local development convenience; missing .env is fine.
	_ = godotenv.Load()

	logger := logging.NewJSONLogger("delivery-validation", os.Getenv("LOG_LEVEL"))

	if err := auth.Init(); err != nil {
		log.Fatalf("Failed to initialize auth: %v", err)
	}
	log.Println("JWT authentication initialized")

	if err := db.Init(); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()
	log.Println("Database connection pool initialized")

	if err := storage.Init(); err != nil {
		log.Printf("Warning: MinIO storage not available: %v", err)
		log.Println("Document scans will not be stored")
	} else {
		log.Println("MinIO storage initialized")
	}

	config, err := loadConfig("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	configTTL := time.Duration(config.Validation.ConfigCacheSeconds) * time.Second
	clientConfigs := clientcfg.NewLoader(config.Validation.ClientConfigDir, configTTL, logger)

	registry := validation.NewDefaultRegistry(logger)
	engine := validation.NewEngine(registry, clientConfigs, logger)

	ocrEngine := ocr.NewTesseractEngine(config.OCR.Language)
	preprocessor := ocr.NewPreprocessor(logger)

	handler := api.NewHandler(config, engine, ocrEngine, preprocessor, clientConfigs, logger)
	router := handler.SetupRoutes()
	router.HandleFunc("/api/login", auth.LoginHandler).Methods("POST")

	// JWT middleware skips /health, /metrics and /api/login.
	protectedRouter := auth.JWTMiddleware(router)

	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)
	log.Printf("Starting Delivery Validation Service v%s on %s", api.Version, addr)
	log.Printf("OCR language: %s", config.OCR.Language)
	log.Printf("Client config dir: %s", config.Validation.ClientConfigDir)

	if err := http.ListenAndServe(addr, protectedRouter); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func loadConfig(path string) (*models.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config models.Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Environment overrides.
	if port := os.Getenv("PORT"); port != "" {
		fmt.Sscanf(port, "%d", &config.Port)
	}
	if host := os.Getenv("HOST"); host != "" {
		config.Host = host
	}
	if lang := os.Getenv("OCR_LANGUAGE"); lang != "" {
		config.OCR.Language = lang
	}
	if dir := os.Getenv("CLIENT_CONFIG_DIR"); dir != "" {
		config.Validation.ClientConfigDir = dir
	}

	if config.Port == 0 {
		config.Port = 8080
	}
	if config.OCR.Language == "" {
		config.OCR.Language = "eng"
	}
	if config.Validation.ClientConfigDir == "" {
		config.Validation.ClientConfigDir = "configs/clients"
	}
	if config.Validation.ConfigCacheSeconds == 0 {
		config.Validation.ConfigCacheSeconds = 300
	}

	return &config, nil
}
