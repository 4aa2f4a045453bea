// domain/cv_version.go
package domain

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Format - заявленный формат файла резюме
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
	FormatHTML Format = "html"
	FormatText Format = "txt"
)

// ParseFormat разбирает заявленный формат. Пустая строка не является форматом.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pdf":
		return FormatPDF, nil
	case "docx":
		return FormatDOCX, nil
	case "html", "htm":
		return FormatHTML, nil
	case "txt", "text", "plain", "plain-text":
		return FormatText, nil
	}
	return "", ErrUnsupportedFormat
}

// FormatFromFilename определяет формат по расширению имени файла, по умолчанию pdf
func FormatFromFilename(name string) Format {
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	if ext == "" {
		return FormatPDF
	}
	f, err := ParseFormat(ext)
	if err != nil {
		return FormatPDF
	}
	return f
}

func (f Format) Extension() string {
	return string(f)
}

func (f Format) ContentType() string {
	switch f {
	case FormatDOCX:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case FormatHTML:
		return "text/html; charset=utf-8"
	case FormatText:
		return "text/plain; charset=utf-8"
	default:
		return "application/pdf"
	}
}

type CVVersion struct {
	ID            uuid.UUID `json:"id" db:"id"`
	UserID        uuid.UUID `json:"user_id" db:"user_id"`
	VersionNumber int       `json:"version_number" db:"version_number"`
	StorageKey    string    `json:"storage_key" db:"storage_key"`
	Format        Format    `json:"format" db:"format"`
	SizeBytes     int64     `json:"size_bytes" db:"size_bytes"`
	TemplateLabel *string   `json:"template_label,omitempty" db:"template_label"`
	Notes         *string   `json:"notes,omitempty" db:"notes"`
	IsActive      bool      `json:"is_active" db:"is_active"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// CVUpload - входные данные для загрузки новой версии
type CVUpload struct {
	UserID        uuid.UUID
	FileName      string
	Data          []byte
	Format        string // может быть пустым, тогда формат определяется по FileName
	TemplateLabel *string
	Notes         *string
}
