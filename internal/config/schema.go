package config

import "time"

// Config holds formscan configuration.
// Stored at: {home}/config.yaml
type Config struct {
	PDFInputDirectory string        `mapstructure:"pdf_input_directory" yaml:"pdf_input_directory" json:"pdf_input_directory"`
	JSONOutputPath    string        `mapstructure:"json_output_path" yaml:"json_output_path" json:"json_output_path"`
	MaxWorkers        int           `mapstructure:"max_workers" yaml:"max_workers" json:"max_workers"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level" json:"log_level"` // debug, info, warn, error
	Timeout           time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`     // 0 waits for every document
	Grouped           bool          `mapstructure:"grouped" yaml:"grouped" json:"grouped"`     // nested {file, pages} output

	// SchemaFile loads a single schema instead of the whole store.
	SchemaFile string `mapstructure:"schema_file" yaml:"schema_file" json:"schema_file"`
	// SchemaDirectory overrides {home}/schemas.
	SchemaDirectory string `mapstructure:"schema_directory" yaml:"schema_directory" json:"schema_directory"`
	// ValidationLogPath overrides {home}/logs/validation_errors.jsonl.
	ValidationLogPath string `mapstructure:"validation_log_path" yaml:"validation_log_path" json:"validation_log_path"`

	XLSXOutputPath   string `mapstructure:"xlsx_output_path" yaml:"xlsx_output_path" json:"xlsx_output_path"`
	SQLiteOutputPath string `mapstructure:"sqlite_output_path" yaml:"sqlite_output_path" json:"sqlite_output_path"`

	OCR     OCRConfig     `mapstructure:"ocr" yaml:"ocr" json:"ocr"`
	Schemas SchemasConfig `mapstructure:"schemas" yaml:"schemas" json:"schemas"`
}

// OCRConfig configures the pdftoppm/tesseract adapter.
type OCRConfig struct {
	PdftoppmCmd  string `mapstructure:"pdftoppm_cmd" yaml:"pdftoppm_cmd" json:"pdftoppm_cmd"`
	TesseractCmd string `mapstructure:"tesseract_cmd" yaml:"tesseract_cmd" json:"tesseract_cmd"`
	DPI          int    `mapstructure:"dpi" yaml:"dpi" json:"dpi"`
	Language     string `mapstructure:"language" yaml:"language" json:"language"`
	Attempts     uint   `mapstructure:"attempts" yaml:"attempts" json:"attempts"` // per command
}

// SchemasConfig configures the schema store.
type SchemasConfig struct {
	// Watch reloads the registry when files in the store change.
	Watch bool `mapstructure:"watch" yaml:"watch" json:"watch"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		PDFInputDirectory: "data/input",
		JSONOutputPath:    "data/output/results.json",
		MaxWorkers:        5,
		LogLevel:          "info",
		OCR: OCRConfig{
			PdftoppmCmd:  "pdftoppm",
			TesseractCmd: "tesseract",
			DPI:          300,
			Language:     "eng",
			Attempts:     3,
		},
	}
}
