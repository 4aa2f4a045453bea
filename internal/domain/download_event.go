package domain

import (
	"time"

	"github.com/google/uuid"
)

type DownloadEvent struct {
	ID        uuid.UUID `json:"id" db:"id"`
	VersionID uuid.UUID `json:"version_id" db:"version_id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	IPAddress *string   `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent *string   `json:"user_agent,omitempty" db:"user_agent"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// RequesterMetadata описывает того, кто скачивает файл
type RequesterMetadata struct {
	IPAddress string
	UserAgent string
}
