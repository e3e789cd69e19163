package booking

import (
	"errors"
	"fmt"
	"mime"
	"strings"

	"firmament/internal/model"
)

// MaxDocumentSize is the largest accepted attachment.
const MaxDocumentSize = 10 << 20

// AllowedDocumentTypes are the accepted attachment MIME types.
var AllowedDocumentTypes = []string{
	"application/pdf",
	"image/jpeg",
	"image/png",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

var (
	// ErrFileTooLarge rejects attachments over MaxDocumentSize.
	ErrFileTooLarge = errors.New("exceeds 10MB")
	// ErrUnsupportedType rejects attachments of other MIME types.
	ErrUnsupportedType = errors.New("unsupported file type")
)

// DocumentError names the rejected file.
type DocumentError struct {
	Name string
	Err  error
}

func (e *DocumentError) Error() string {
	if errors.Is(e.Err, ErrFileTooLarge) {
		return fmt.Sprintf("%s exceeds the maximum size of 10MB", e.Name)
	}
	return fmt.Sprintf("unsupported file type: %s", e.Name)
}

func (e *DocumentError) Unwrap() error { return e.Err }

// ValidateAttachment checks size first, then type.
func ValidateAttachment(a model.Attachment) error {
	size := a.Size
	if size == 0 {
		size = int64(len(a.Data))
	}
	if size > MaxDocumentSize {
		return &DocumentError{Name: a.Name, Err: ErrFileTooLarge}
	}
	if !allowedType(a.ContentType) {
		return &DocumentError{Name: a.Name, Err: ErrUnsupportedType}
	}
	return nil
}

func allowedType(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(contentType))
	}
	for _, t := range AllowedDocumentTypes {
		if mt == t {
			return true
		}
	}
	return false
}
