package config

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/conneroisu/folio/internal/logging"
	"github.com/conneroisu/folio/internal/renderer"
)

// ValidationError represents a configuration validation error with suggestions
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the result of configuration validation
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationError
	Warnings []ValidationError
}

// HasErrors returns true if there are any validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings
func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings) > 0
}

// String returns a formatted string of all validation issues
func (vr *ValidationResult) String() string {
	var builder strings.Builder

	if len(vr.Errors) > 0 {
		builder.WriteString("❌ Validation Errors:\n")
		for _, err := range vr.Errors {
			builder.WriteString(fmt.Sprintf("  • %s: %s\n", err.Field, err.Message))
			for _, suggestion := range err.Suggestions {
				builder.WriteString(fmt.Sprintf("    💡 %s\n", suggestion))
			}
		}
		builder.WriteString("\n")
	}

	if len(vr.Warnings) > 0 {
		builder.WriteString("⚠️  Validation Warnings:\n")
		for _, warning := range vr.Warnings {
			builder.WriteString(fmt.Sprintf("  • %s: %s\n", warning.Field, warning.Message))
			for _, suggestion := range warning.Suggestions {
				builder.WriteString(fmt.Sprintf("    💡 %s\n", suggestion))
			}
		}
	}

	return builder.String()
}

func (vr *ValidationResult) addError(field string, value interface{}, message string, suggestions ...string) {
	vr.Errors = append(vr.Errors, ValidationError{Field: field, Value: value, Message: message, Suggestions: suggestions})
}

func (vr *ValidationResult) addWarning(field string, value interface{}, message string, suggestions ...string) {
	vr.Warnings = append(vr.Warnings, ValidationError{Field: field, Value: value, Message: message, Suggestions: suggestions})
}

// ValidateConfigWithDetails performs comprehensive validation with detailed feedback
func ValidateConfigWithDetails(config *Config) *ValidationResult {
	result := &ValidationResult{
		Valid:    true,
		Errors:   []ValidationError{},
		Warnings: []ValidationError{},
	}

	validateImagesConfigDetails(&config.Images, result)
	validateRenderConfigDetails(&config.Render, result)
	validatePipelineConfigDetails(&config.Pipeline, result)
	validateStoreConfigDetails(&config.Store, result)
	validateServerConfigDetails(&config.Server, result)
	validateLogConfigDetails(&config.Log, result)

	result.Valid = !result.HasErrors()

	return result
}

func validateImagesConfigDetails(config *ImagesConfig, result *ValidationResult) {
	if config.MaxUploadBytes < 0 {
		result.addError("images.max_upload_bytes", config.MaxUploadBytes, "upload limit cannot be negative",
			"Use 10485760 for a 10 MiB ceiling")
	}
	if config.RecompressThreshold < 0 || config.SecondaryThreshold < 0 {
		result.addError("images.recompress_threshold", config.RecompressThreshold, "thresholds cannot be negative")
	}
	if config.MaxUploadBytes > 0 && config.RecompressThreshold > config.MaxUploadBytes {
		result.addWarning("images.recompress_threshold", config.RecompressThreshold,
			"recompress threshold exceeds the upload limit, images will never be recompressed",
			"Set recompress_threshold below max_upload_bytes")
	}
	if config.SecondaryThreshold > config.RecompressThreshold {
		result.addWarning("images.secondary_threshold", config.SecondaryThreshold,
			"secondary threshold is larger than the recompress threshold",
			"The second lower quality pass only runs on already recompressed images")
	}
	if config.MaxWidth < 0 || config.MaxHeight < 0 {
		result.addError("images.max_width", fmt.Sprintf("%dx%d", config.MaxWidth, config.MaxHeight),
			"maximum dimensions cannot be negative",
			"Use 1920x1080 to fit a typical screen")
	}
	if config.BatchFloor < 0 {
		result.addError("images.batch_floor", config.BatchFloor, "batch floor cannot be negative")
	} else if config.BatchFloor > 5*time.Second {
		result.addWarning("images.batch_floor", config.BatchFloor, "uploads will feel slow with a long batch floor",
			"Use 400ms or less")
	}
	for _, dir := range config.Dirs {
		if err := validatePath(dir); err != nil {
			result.addError("images.dirs", dir, err.Error(), "Use a relative path inside the project")
		}
	}
}

func validateRenderConfigDetails(config *RenderConfig, result *ValidationResult) {
	if _, err := renderer.ParseFormat(config.Format); err != nil {
		result.addError("render.format", config.Format, err.Error(),
			"Use 'html' for the browser preview",
			"Use 'terminal' for styled console output",
			"Use 'markdown' to export plain markdown")
	}
	if config.WordWrap < 0 {
		result.addError("render.word_wrap", config.WordWrap, "word wrap cannot be negative")
	} else if config.WordWrap > 0 && config.WordWrap < 20 {
		result.addWarning("render.word_wrap", config.WordWrap, "very narrow word wrap", "Use 80 for a standard terminal")
	}
	knownStyles := []string{"auto", "dark", "light", "notty", "ascii", "dracula", "pink", "tokyo-night"}
	if config.Style != "" && !contains(knownStyles, config.Style) {
		result.addWarning("render.style", config.Style, "unknown terminal style",
			fmt.Sprintf("Known styles: %s", strings.Join(knownStyles, ", ")))
	}
}

func validatePipelineConfigDetails(config *PipelineConfig, result *ValidationResult) {
	if config.Debounce < 0 {
		result.addError("pipeline.debounce", config.Debounce, "debounce cannot be negative")
	} else if config.Debounce > 5*time.Second {
		result.addWarning("pipeline.debounce", config.Debounce, "the preview will lag behind edits",
			"Use 300ms for responsive updates")
	}
}

func validateStoreConfigDetails(config *StoreConfig, result *ValidationResult) {
	if strings.ContainsRune(config.Dir, 0) {
		result.addError("store.dir", config.Dir, "store directory contains a null byte")
	}
}

func validateServerConfigDetails(config *ServerConfig, result *ValidationResult) {
	// Validate port
	if config.Port < 0 || config.Port > 65535 {
		result.addError("server.port", config.Port,
			fmt.Sprintf("port %d is not in valid range 0-65535", config.Port),
			"Use a port between 1024-65535 for non-privileged access",
			"Common development ports: 3000, 8080, 8000, 3001",
			"Port 0 allows system to assign an available port")
	} else if config.Port > 0 && config.Port < 1024 {
		result.addWarning("server.port", config.Port, "port below 1024 requires elevated privileges",
			"Consider using a port above 1024 for development",
			"Use sudo if you need to bind to privileged ports")
	}

	// Validate host
	if config.Host != "" {
		if err := validateHostname(config.Host); err != nil {
			result.addError("server.host", config.Host, err.Error(),
				"Use 'localhost' for local development",
				"Use '0.0.0.0' to bind to all interfaces",
				"Use a valid IP address or hostname")
		}
	}

	for _, origin := range config.AllowedOrigins {
		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			result.addError("server.allowed_origins", origin, "origin must be a scheme and host",
				"Example: http://localhost:3000")
		}
	}
}

func validateLogConfigDetails(config *LogConfig, result *ValidationResult) {
	if _, err := logging.ParseLevel(config.Level); err != nil {
		result.addError("log.level", config.Level, err.Error(), "Use one of: debug, info, warn, error")
	}
	format := strings.ToLower(config.Format)
	if format != "" && format != "text" && format != "json" {
		result.addError("log.format", config.Format, "unknown log format", "Use 'text' or 'json'")
	}
}

var hostnameRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)

func validateHostname(host string) error {
	// Check for dangerous characters
	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\"}
	for _, char := range dangerousChars {
		if strings.Contains(host, char) {
			return fmt.Errorf("contains dangerous character: %s", char)
		}
	}

	if net.ParseIP(host) != nil || host == "localhost" {
		return nil
	}

	if !hostnameRegex.MatchString(host) {
		return fmt.Errorf("invalid hostname format")
	}

	return nil
}

// validatePath rejects traversal and absolute-looking tricks in configured
// directories.
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if strings.ContainsRune(path, 0) {
		return fmt.Errorf("path contains a null byte")
	}
	for _, part := range strings.Split(strings.ReplaceAll(path, "\\", "/"), "/") {
		if part == ".." {
			return fmt.Errorf("path contains traversal: %s", path)
		}
	}
	return nil
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
