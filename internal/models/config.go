package models

// ClientValidationConfig is the per-customer validation policy configuration.
// The engine consumes it read-only; it is immutable for the duration of one
// validation run.
type ClientValidationConfig struct {
	ClientID string `json:"clientId" yaml:"client_id" validate:"required"`

	// Stamp and signature requirements.
	RequireDispatchStamp     bool `json:"requireDispatchStamp" yaml:"require_dispatch_stamp"`
	RequireWarehouseStamp    bool `json:"requireWarehouseStamp" yaml:"require_warehouse_stamp"`
	RequireDriverSignature   bool `json:"requireDriverSignature" yaml:"require_driver_signature"`
	RequireCustomerSignature bool `json:"requireCustomerSignature" yaml:"require_customer_signature"`

	// Section toggles.
	CheckPalletDocuments bool `json:"checkPalletDocuments" yaml:"check_pallet_documents"`
	CheckTimeInOut       bool `json:"checkTimeInOut" yaml:"check_time_in_out"`

	// Cross-document comparisons.
	ComparePONumbers       bool    `json:"comparePONumbers" yaml:"compare_po_numbers"`
	CompareTotalCases      bool    `json:"compareTotalCases" yaml:"compare_total_cases"`
	CompareLineItems       bool    `json:"compareLineItems" yaml:"compare_line_items"`
	AllowedVariancePercent float64 `json:"allowedVariancePercent" yaml:"allowed_variance_percent" validate:"gte=0,lte=100"`
}

// Config is the service configuration loaded from config.yaml.
type Config struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`

	OCR OCRConfig `yaml:"ocr"`

	Validation ValidationConfig `yaml:"validation"`
}

// OCRConfig configures the OCR boundary.
type OCRConfig struct {
	Language   string `yaml:"language"`   // tesseract language, default "eng"
	Preprocess bool   `yaml:"preprocess"` // run the ImageMagick pipeline before OCR
}

// ValidationConfig configures the validation engine wiring.
type ValidationConfig struct {
	ClientConfigDir    string `yaml:"client_config_dir"`
	ConfigCacheSeconds int    `yaml:"config_cache_seconds"` // default 300
}
