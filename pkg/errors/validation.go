package errors

import (
	"path/filepath"
	"strings"
	"unicode"
)

// MaxUploadSize is the largest image accepted for upload (5 MiB).
const MaxUploadSize = 5 << 20

// allowedExtensions lists the image file extensions accepted for upload.
var allowedExtensions = map[string]bool{
	"png":  true,
	"jpg":  true,
	"jpeg": true,
	"gif":  true,
	"webp": true,
}

// ValidateURL validates a URL string for safety.
// It ensures the URL has a safe scheme (http or https).
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}

	// Simple scheme validation without full URL parsing
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return New(ErrCodeInvalidInput, "URL must use http or https scheme")
	}

	return nil
}

// ValidateUploadFilename checks that an uploaded file name is a plain
// basename with one of the allowed image extensions.
func ValidateUploadFilename(filename string) error {
	if filename == "" {
		return New(ErrCodeInvalidInput, "filename cannot be empty")
	}

	if strings.ContainsAny(filename, "/\\") {
		return New(ErrCodeInvalidInput, "filename cannot contain path separators")
	}

	for _, r := range filename {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "filename contains invalid control characters")
		}
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if !allowedExtensions[ext] {
		return New(ErrCodeInvalidFormat, "unsupported file type %q (allowed: png, jpg, jpeg, gif, webp)", ext)
	}

	return nil
}

// ValidateUploadSize rejects empty uploads and uploads above [MaxUploadSize].
func ValidateUploadSize(size int64) error {
	if size <= 0 {
		return New(ErrCodeInvalidInput, "file is empty")
	}
	if size > MaxUploadSize {
		return New(ErrCodeInvalidInput, "file too large (max %d MB)", MaxUploadSize>>20)
	}
	return nil
}

// ValidateCaption rejects captions that contain control characters other
// than ordinary whitespace.
func ValidateCaption(text string) error {
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return New(ErrCodeInvalidInput, "caption contains invalid control characters")
		}
	}
	return nil
}

// ValidatePath validates a local output or font path.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
//   - No path traversal sequences (..)
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	for _, part := range strings.FieldsFunc(path, func(r rune) bool { return r == '/' || r == '\\' }) {
		if part == ".." {
			return New(ErrCodeInvalidPath, "path cannot contain path traversal sequences (..)")
		}
	}

	return nil
}

// ValidateStyle checks that style is one of the configured caption styles.
func ValidateStyle(style string, allowed []string) error {
	if style == "" {
		return New(ErrCodeInvalidStyle, "style cannot be empty")
	}
	for _, s := range allowed {
		if s == style {
			return nil
		}
	}
	return New(ErrCodeInvalidStyle, "unknown style %q (allowed: %s)", style, strings.Join(allowed, ", "))
}
