package converter

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/harliandi/go-imgresize/pkg/codec"
)

var (
	// ErrUnsupportedType is returned when the upload's MIME type is not accepted
	ErrUnsupportedType = errors.New("unsupported image type")
	// ErrFileTooLarge is returned when the file exceeds the size limit
	ErrFileTooLarge = errors.New("file size exceeds limit")
	// ErrInvalidTarget is returned when a target-size job has no positive, finite target
	ErrInvalidTarget = errors.New("invalid target size")
	// ErrInvalidDimensions is returned when a dimension job has neither width nor height
	ErrInvalidDimensions = errors.New("width or height required")
	// ErrEmptyFile is returned for a zero-byte upload
	ErrEmptyFile = errors.New("empty file")
)

// MaxFileSize is the largest accepted upload. A configured limit can only
// lower it.
const MaxFileSize = 20 * 1024 * 1024

// FileSizeError is an ErrFileTooLarge that carries the limit in force
type FileSizeError struct {
	Limit int
}

func (e *FileSizeError) Error() string {
	return fmt.Sprintf("%v (max %s)", ErrFileTooLarge, codec.FormatFileSize(int64(e.Limit)))
}

func (e *FileSizeError) Unwrap() error { return ErrFileTooLarge }

// UploadLimit returns the effective upload limit in bytes for a configured
// one; zero or anything above MaxFileSize yields MaxFileSize
func UploadLimit(limit int) int {
	if limit <= 0 || limit > MaxFileSize {
		return MaxFileSize
	}
	return limit
}

// AllowedTypes are the accepted upload MIME types
var AllowedTypes = []string{"image/jpeg", "image/jpg", "image/png", "image/webp"}

// ValidateUpload checks the declared MIME type and size before any work
// starts. limit is passed through UploadLimit.
func ValidateUpload(mimeType string, size, limit int) error {
	if !isAllowedType(mimeType) {
		return fmt.Errorf("%w: %q", ErrUnsupportedType, mimeType)
	}
	if limit = UploadLimit(limit); size > limit {
		return &FileSizeError{Limit: limit}
	}
	if size == 0 {
		return ErrEmptyFile
	}
	return nil
}

// IsValidation reports whether err is a validation failure, as opposed to a
// failure while processing the image
func IsValidation(err error) bool {
	return errors.Is(err, ErrUnsupportedType) ||
		errors.Is(err, ErrFileTooLarge) ||
		errors.Is(err, ErrInvalidTarget) ||
		errors.Is(err, ErrInvalidDimensions) ||
		errors.Is(err, ErrEmptyFile) ||
		errors.Is(err, codec.ErrUnsupportedFormat)
}

// Message returns the text shown to the user for a job error
func Message(err error) string {
	switch {
	case errors.Is(err, ErrUnsupportedType):
		return "Please upload a valid image file (JPEG, PNG, WebP)"
	case errors.Is(err, ErrFileTooLarge):
		limit := MaxFileSize
		var fe *FileSizeError
		if errors.As(err, &fe) {
			limit = fe.Limit
		}
		return "File size too large. Maximum size is " + formatMB(limit)
	case errors.Is(err, ErrInvalidTarget):
		return "Please enter a valid target size"
	case errors.Is(err, ErrInvalidDimensions):
		return "Please enter valid width or height"
	case errors.Is(err, ErrEmptyFile):
		return "Please select an image first"
	case errors.Is(err, codec.ErrUnsupportedFormat):
		return "Please choose an output format (JPEG, JPG, PNG, WebP)"
	case errors.Is(err, codec.ErrImageTooLarge):
		return "Image dimensions are too large to process"
	case errors.Is(err, codec.ErrDecodeFailed):
		return "Error processing image: the file could not be read as an image"
	case errors.Is(err, ErrPoolBusy):
		return "Service busy, please try again"
	}
	return "Error processing image"
}

func formatMB(n int) string {
	return strconv.FormatFloat(math.Round(float64(n)/(1<<20)*100)/100, 'f', -1, 64) + "MB"
}

// NormalizeMIME lowercases a declared MIME type and strips parameters
func NormalizeMIME(mimeType string) string {
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}

func isAllowedType(mimeType string) bool {
	mimeType = NormalizeMIME(mimeType)
	for _, t := range AllowedTypes {
		if mimeType == t {
			return true
		}
	}
	return false
}

// ValidateJob runs every check that does not need the decoded image
func ValidateJob(job *Job) error {
	if err := ValidateUpload(job.MIMEType, len(job.Data), job.MaxBytes); err != nil {
		return err
	}
	switch job.Mode {
	case ModeTargetSize:
		if !(job.TargetKB > 0) || math.IsInf(job.TargetKB, 0) {
			return ErrInvalidTarget
		}
	case ModeDimensions:
		if !job.Dimensions.HasAny() {
			return ErrInvalidDimensions
		}
	default:
		return fmt.Errorf("unknown job mode %q", job.Mode)
	}
	return nil
}
