package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/geocoder89/buildhub/internal/cache"
	"github.com/geocoder89/buildhub/internal/config"
	"github.com/geocoder89/buildhub/internal/domain/banner"
	"github.com/gin-gonic/gin"
)

type BannersStore interface {
	GetActive(ctx context.Context) (banner.Banner, error)
	List(ctx context.Context) ([]banner.Banner, error)
	Create(ctx context.Context, b banner.Banner) (banner.Banner, error)
	SetActive(ctx context.Context, id string, active bool) (banner.Banner, error)
	Delete(ctx context.Context, id string) (banner.Banner, error)
}

type BannersHandler struct {
	repo     BannersStore
	uploader Uploader
	cache    cache.Store
}

func NewBannersHandler(repo BannersStore, uploader Uploader, c cache.Store) *BannersHandler {
	return &BannersHandler{repo: repo, uploader: uploader, cache: c}
}

const activeBannerKey = "banner:active"

func (h *BannersHandler) invalidate(ctx context.Context) {
	if h.cache != nil {
		h.cache.Clear(ctx)
	}
}

// GetActiveBanner backs the public homepage; cached because it is the
// hottest read in the system.
func (h *BannersHandler) GetActiveBanner(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	if h.cache != nil {
		if b, ok := h.cache.Get(cctx, activeBannerKey); ok {
			RespondJSONWithETag(ctx, http.StatusOK, json.RawMessage(b))
			return
		}
	}

	b, err := h.repo.GetActive(cctx)

	if err != nil {
		if errors.Is(err, banner.ErrNoActive) {
			RespondNotFound(ctx, "No active banner found")
			return
		}
		RespondInternal(ctx, "Could not fetch banner")
		return
	}

	if h.cache != nil {
		if raw, err := json.Marshal(b); err == nil {
			h.cache.Set(cctx, activeBannerKey, raw)
		}
	}

	RespondJSONWithETag(ctx, http.StatusOK, b)
}

func (h *BannersHandler) ListBanners(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	banners, err := h.repo.List(cctx)

	if err != nil {
		RespondInternal(ctx, "Could not list banners")
		return
	}

	ctx.JSON(http.StatusOK, banners)
}

func (h *BannersHandler) UploadBanner(ctx *gin.Context) {
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

	b, err := h.repo.Create(cctx, banner.New(f.PublicPath))

	if err != nil {
		_ = h.uploader.Remove(f.PublicPath)
		RespondInternal(ctx, "Could not create banner")
		return
	}

	h.invalidate(cctx)
	ctx.JSON(http.StatusCreated, b)
}

func (h *BannersHandler) UpdateBannerStatus(ctx *gin.Context) {
	var req banner.UpdateStatusRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	b, err := h.repo.SetActive(cctx, ctx.Param("id"), *req.IsActive)

	if err != nil {
		if errors.Is(err, banner.ErrNotFound) {
			RespondNotFound(ctx, "Banner not found")
			return
		}
		RespondInternal(ctx, "Could not update banner")
		return
	}

	h.invalidate(cctx)
	ctx.JSON(http.StatusOK, b)
}

func (h *BannersHandler) DeleteBanner(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	b, err := h.repo.Delete(cctx, ctx.Param("id"))

	if err != nil {
		if errors.Is(err, banner.ErrNotFound) {
			RespondNotFound(ctx, "Banner not found")
			return
		}
		RespondInternal(ctx, "Could not delete banner")
		return
	}

	_ = h.uploader.Remove(b.Image)

	h.invalidate(cctx)
	ctx.JSON(http.StatusOK, gin.H{"message": "Banner removed"})
}
