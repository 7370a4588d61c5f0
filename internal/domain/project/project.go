package project

import (
	"errors"
	"time"
)

// Status values a project may hold.
const (
	StatusInProgress = "in-progress"
	StatusCompleted  = "completed"
)

func ValidStatus(s string) bool {
	return s == StatusInProgress || s == StatusCompleted
}

type Project struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Image       string    `json:"image"`
	Status      string    `json:"status"`
	LastUpdate  time.Time `json:"lastUpdate"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

var ErrNotFound = errors.New("project not found")

// CreateProjectRequest is bound from the multipart form; the image part is
// handled by the upload pipeline before the record is created.
type CreateProjectRequest struct {
	Title       string `form:"title" binding:"required,min=2,max=160"`
	Description string `form:"description" binding:"required,max=4000"`
}

// UpdateProjectRequest carries optional fields; empty values leave the
// stored ones untouched.
type UpdateProjectRequest struct {
	Title       string `form:"title" binding:"omitempty,min=2,max=160"`
	Description string `form:"description" binding:"omitempty,max=4000"`
	Status      string `form:"status" binding:"omitempty"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type UpdateDateRequest struct {
	Date string `json:"date"`
}
