package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/geocoder89/buildhub/internal/cache"
	"github.com/geocoder89/buildhub/internal/config"
	"github.com/geocoder89/buildhub/internal/domain/project"
	"github.com/geocoder89/buildhub/internal/upload"
	"github.com/gin-gonic/gin"
)

type ProjectsStore interface {
	Create(ctx context.Context, p project.Project) (project.Project, error)
	List(ctx context.Context) ([]project.Project, error)
	GetByID(ctx context.Context, id string) (project.Project, error)
	Update(ctx context.Context, id string, req project.UpdateProjectRequest, newImage string) (project.Project, error)
	UpdateStatus(ctx context.Context, id, status string) (project.Project, error)
	UpdateDate(ctx context.Context, id string, date time.Time) (project.Project, error)
	Delete(ctx context.Context, id string) (string, error)
}

// Uploader is the slice of the upload pipeline the handlers need.
type Uploader interface {
	Process(fh *multipart.FileHeader) (*upload.File, error)
	Remove(publicPath string) error
}

type ProjectsHandler struct {
	repo     ProjectsStore
	uploader Uploader
	cache    cache.Store
}

func NewProjectsHandler(repo ProjectsStore, uploader Uploader, c cache.Store) *ProjectsHandler {
	return &ProjectsHandler{repo: repo, uploader: uploader, cache: c}
}

const projectsListKey = "projects:list"

func (h *ProjectsHandler) invalidate(ctx context.Context) {
	if h.cache != nil {
		h.cache.Clear(ctx)
	}
}

func (h *ProjectsHandler) ListProjects(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	if h.cache != nil {
		if b, ok := h.cache.Get(cctx, projectsListKey); ok {
			RespondJSONWithETag(ctx, http.StatusOK, json.RawMessage(b))
			return
		}
	}

	items, err := h.repo.List(cctx)

	if err != nil {
		RespondInternal(ctx, "Could not list projects")
		return
	}

	if h.cache != nil {
		if b, err := json.Marshal(items); err == nil {
			h.cache.Set(cctx, projectsListKey, b)
		}
	}

	RespondJSONWithETag(ctx, http.StatusOK, items)
}

func (h *ProjectsHandler) GetProjectByID(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	p, err := h.repo.GetByID(cctx, ctx.Param("id"))

	if err != nil {
		if errors.Is(err, project.ErrNotFound) {
			RespondNotFound(ctx, "Project not found")
			return
		}
		RespondInternal(ctx, "Could not fetch project")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, p)
}

func (h *ProjectsHandler) CreateProject(ctx *gin.Context) {
	var req project.CreateProjectRequest

	if !BindForm(ctx, &req) {
		return
	}

	fh, err := ctx.FormFile("image")

	if err != nil {
		RespondBadRequest(ctx, "Please upload an image", nil)
		return
	}

	f, err := h.uploader.Process(fh)

	if err != nil {
		respondUploadError(ctx, err)
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	p, err := h.repo.Create(cctx, project.NewFromCreateRequest(req, f.PublicPath))

	if err != nil {
		// the record never existed; do not leave its file behind
		_ = h.uploader.Remove(f.PublicPath)
		RespondInternal(ctx, "Could not create project")
		return
	}

	h.invalidate(cctx)
	ctx.JSON(http.StatusCreated, p)
}

func (h *ProjectsHandler) UpdateProject(ctx *gin.Context) {
	var req project.UpdateProjectRequest

	if !BindForm(ctx, &req) {
		return
	}

	if req.Status != "" && !project.ValidStatus(req.Status) {
		RespondBadRequest(ctx, "Invalid status. Must be \"in-progress\" or \"completed\".", nil)
		return
	}

	id := ctx.Param("id")

	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	existing, err := h.repo.GetByID(cctx, id)

	if err != nil {
		if errors.Is(err, project.ErrNotFound) {
			RespondNotFound(ctx, "Project not found")
			return
		}
		RespondInternal(ctx, "Could not update project")
		return
	}

	newImage := ""

	// the image part is optional on update
	if fh, ferr := ctx.FormFile("image"); ferr == nil {
		f, uerr := h.uploader.Process(fh)

		if uerr != nil {
			respondUploadError(ctx, uerr)
			return
		}

		newImage = f.PublicPath
	}

	p, err := h.repo.Update(cctx, id, req, newImage)

	if err != nil {
		if newImage != "" {
			_ = h.uploader.Remove(newImage)
		}

		if errors.Is(err, project.ErrNotFound) {
			RespondNotFound(ctx, "Project not found")
			return
		}
		RespondInternal(ctx, "Could not update project")
		return
	}

	// the record now points at the new file; the old one is ours to drop
	if newImage != "" && existing.Image != newImage {
		_ = h.uploader.Remove(existing.Image)
	}

	h.invalidate(cctx)
	ctx.JSON(http.StatusOK, p)
}

func (h *ProjectsHandler) UpdateProjectStatus(ctx *gin.Context) {
	var req project.UpdateStatusRequest

	if !BindJSON(ctx, &req) {
		return
	}

	if !project.ValidStatus(req.Status) {
		RespondBadRequest(ctx, "Invalid status. Must be \"in-progress\" or \"completed\".", nil)
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	p, err := h.repo.UpdateStatus(cctx, ctx.Param("id"), req.Status)

	if err != nil {
		if errors.Is(err, project.ErrNotFound) {
			RespondNotFound(ctx, "Project not found")
			return
		}
		RespondInternal(ctx, "Could not update project status")
		return
	}

	h.invalidate(cctx)
	ctx.JSON(http.StatusOK, p)
}

func (h *ProjectsHandler) UpdateProjectDate(ctx *gin.Context) {
	var req project.UpdateDateRequest

	if !BindJSON(ctx, &req) {
		return
	}

	date := time.Now().UTC()

	if req.Date != "" {
		parsed, err := parseDate(req.Date)

		if err != nil {
			RespondBadRequest(ctx, "Invalid date", nil)
			return
		}

		date = parsed
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	p, err := h.repo.UpdateDate(cctx, ctx.Param("id"), date)

	if err != nil {
		if errors.Is(err, project.ErrNotFound) {
			RespondNotFound(ctx, "Project not found")
			return
		}
		RespondInternal(ctx, "Could not update project date")
		return
	}

	h.invalidate(cctx)
	ctx.JSON(http.StatusOK, p)
}

func (h *ProjectsHandler) DeleteProject(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	image, err := h.repo.Delete(cctx, ctx.Param("id"))

	if err != nil {
		if errors.Is(err, project.ErrNotFound) {
			RespondNotFound(ctx, "Project not found")
			return
		}
		RespondInternal(ctx, "Could not delete project")
		return
	}

	_ = h.uploader.Remove(image)

	h.invalidate(cctx)
	ctx.JSON(http.StatusOK, gin.H{"message": "Project removed"})
}

func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}

	return time.Parse("2006-01-02", raw)
}

func respondUploadError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, upload.ErrNoFile):
		RespondBadRequest(ctx, "Please upload an image", nil)
	case errors.Is(err, upload.ErrInvalidType):
		RespondError(ctx, http.StatusBadRequest, "invalid_file_type", "Only image files are allowed", nil)
	case errors.Is(err, upload.ErrTooLarge):
		RespondBadRequest(ctx, "File exceeds the maximum upload size", nil)
	default:
		RespondInternal(ctx, "Could not store uploaded file")
	}
}
