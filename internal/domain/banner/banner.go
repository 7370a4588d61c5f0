package banner

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type Banner struct {
	ID        string    `json:"id"`
	Image     string    `json:"image"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

var (
	ErrNotFound = errors.New("banner not found")
	// ErrNoActive distinguishes "no banner is live" from a missing id.
	ErrNoActive = errors.New("no active banner")
)

type UpdateStatusRequest struct {
	IsActive *bool `json:"isActive" binding:"required"`
}

// New banners start active; the store deactivates every other row in the
// same transaction that inserts this one.
func New(imagePath string) Banner {
	now := time.Now().UTC()

	return Banner{
		ID:        uuid.NewString(),
		Image:     imagePath,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
