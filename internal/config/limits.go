package config

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed limits.yaml
var limitsFile []byte

// UploadLimits holds the validation limits applied to file uploads.
// Loaded once from the embedded YAML file.
type UploadLimits struct {
	MaxFileSizeBytes int64    `yaml:"max_file_size_bytes"`
	MaxNameLength    int      `yaml:"max_name_length"`
	AllowedMimeTypes []string `yaml:"allowed_mime_types"`
}

// LoadUploadLimits parses the embedded limits file.
func LoadUploadLimits() (*UploadLimits, error) {
	var limits UploadLimits
	if err := yaml.Unmarshal(limitsFile, &limits); err != nil {
		return nil, fmt.Errorf("failed to unmarshal upload limits: %w", err)
	}
	if limits.MaxFileSizeBytes <= 0 {
		return nil, fmt.Errorf("upload limits: max_file_size_bytes must be positive")
	}
	if limits.MaxNameLength <= 0 {
		limits.MaxNameLength = 255
	}
	return &limits, nil
}

// AllowsMimeType reports whether the given MIME type may be uploaded.
// An empty allow-list permits everything.
func (l *UploadLimits) AllowsMimeType(mimeType string) bool {
	if len(l.AllowedMimeTypes) == 0 {
		return true
	}
	for _, allowed := range l.AllowedMimeTypes {
		if allowed == mimeType {
			return true
		}
	}
	return false
}
