package project

import (
	"time"

	"github.com/google/uuid"
)

func NewFromCreateRequest(req CreateProjectRequest, imagePath string) Project {
	now := time.Now().UTC()

	return Project{
		ID:          uuid.NewString(),
		Title:       req.Title,
		Description: req.Description,
		Image:       imagePath,
		Status:      StatusInProgress,
		LastUpdate:  now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
