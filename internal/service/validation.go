package service

import (
	"fmt"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"drivechat/internal/config"
	"drivechat/internal/domain"
)

// illegalNameChars are rejected in file and folder names. Path separators
// would break storage paths, the rest break common client filesystems.
var illegalNameChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)

// reservedNames are device names Windows refuses regardless of extension.
var reservedNames = map[string]struct{}{
	"CON": {}, "PRN": {}, "AUX": {}, "NUL": {},
	"COM1": {}, "COM2": {}, "COM3": {}, "COM4": {}, "COM5": {},
	"COM6": {}, "COM7": {}, "COM8": {}, "COM9": {},
	"LPT1": {}, "LPT2": {}, "LPT3": {}, "LPT4": {}, "LPT5": {},
	"LPT6": {}, "LPT7": {}, "LPT8": {}, "LPT9": {},
}

// ValidateNodeName checks a file or folder name against the configured
// limits. Returned errors are validation errors suitable for a 400.
func ValidateNodeName(name string, limits *config.UploadLimits) error {
	name = strings.TrimSpace(name)

	if err := validation.Validate(name,
		validation.Required,
		validation.Length(1, limits.MaxNameLength),
	); err != nil {
		return &domain.ValidationError{Message: "invalid name: " + err.Error()}
	}
	if illegalNameChars.MatchString(name) {
		return &domain.ValidationError{Message: fmt.Sprintf("name %q contains illegal characters", name)}
	}
	if strings.HasSuffix(name, ".") || strings.HasSuffix(name, " ") {
		return &domain.ValidationError{Message: "name cannot end with a dot or space"}
	}

	base := name
	if i := strings.IndexByte(base, '.'); i >= 0 {
		base = base[:i]
	}
	if _, ok := reservedNames[strings.ToUpper(base)]; ok {
		return &domain.ValidationError{Message: fmt.Sprintf("name %q is reserved", name)}
	}
	return nil
}

// ValidateUpload checks the payload constraints in addition to the name.
func ValidateUpload(name, mimeType string, size int64, limits *config.UploadLimits) error {
	if err := ValidateNodeName(name, limits); err != nil {
		return err
	}
	if size <= 0 {
		return &domain.ValidationError{Message: "file is empty"}
	}
	if size > limits.MaxFileSizeBytes {
		return &domain.ValidationError{
			Message: fmt.Sprintf("file exceeds the %d byte limit", limits.MaxFileSizeBytes),
		}
	}
	if mimeType != "" && !limits.AllowsMimeType(mimeType) {
		return &domain.ValidationError{Message: fmt.Sprintf("file type %q is not allowed", mimeType)}
	}
	return nil
}
