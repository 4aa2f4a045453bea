package domain

import (
	"time"

	"github.com/google/uuid"
)

// User - владелец версий резюме. CVURL всегда повторяет URL активной версии
// либо пуст, если версий нет.
type User struct {
	ID          uuid.UUID `json:"id" db:"id"`
	DisplayName string    `json:"display_name" db:"display_name"`
	CVURL       string    `json:"cv_url" db:"cv_url"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
