package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/geocoder89/buildhub/internal/cache"
	"github.com/geocoder89/buildhub/internal/domain/banner"
	"github.com/geocoder89/buildhub/internal/http/handlers"
)

// Stateful fake store that mirrors the real activation rules: at most one
// active banner, new uploads take over, deleting the active one promotes
// the newest survivor.

type fakeBannersStore struct {
	banners []banner.Banner
	getErr  error
}

func (f *fakeBannersStore) GetActive(ctx context.Context) (banner.Banner, error) {
	if f.getErr != nil {
		return banner.Banner{}, f.getErr
	}

	for _, b := range f.banners {
		if b.IsActive {
			return b, nil
		}
	}

	return banner.Banner{}, banner.ErrNoActive
}

func (f *fakeBannersStore) List(ctx context.Context) ([]banner.Banner, error) {
	out := make([]banner.Banner, len(f.banners))
	copy(out, f.banners)
	return out, nil
}

func (f *fakeBannersStore) Create(ctx context.Context, b banner.Banner) (banner.Banner, error) {
	for i := range f.banners {
		f.banners[i].IsActive = false
	}

	f.banners = append(f.banners, b)
	return b, nil
}

func (f *fakeBannersStore) SetActive(ctx context.Context, id string, active bool) (banner.Banner, error) {
	idx := -1

	for i, b := range f.banners {
		if b.ID == id {
			idx = i
			break
		}
	}

	if idx < 0 {
		return banner.Banner{}, banner.ErrNotFound
	}

	if active {
		for i := range f.banners {
			f.banners[i].IsActive = i == idx
		}
	} else {
		f.banners[idx].IsActive = false
	}

	return f.banners[idx], nil
}

func (f *fakeBannersStore) Delete(ctx context.Context, id string) (banner.Banner, error) {
	idx := -1

	for i, b := range f.banners {
		if b.ID == id {
			idx = i
			break
		}
	}

	if idx < 0 {
		return banner.Banner{}, banner.ErrNotFound
	}

	removed := f.banners[idx]
	f.banners = append(f.banners[:idx], f.banners[idx+1:]...)

	if removed.IsActive && len(f.banners) > 0 {
		sort.Slice(f.banners, func(i, j int) bool {
			return f.banners[i].CreatedAt.After(f.banners[j].CreatedAt)
		})
		f.banners[0].IsActive = true
	}

	return removed, nil
}

func (f *fakeBannersStore) activeCount() int {
	n := 0
	for _, b := range f.banners {
		if b.IsActive {
			n++
		}
	}
	return n
}

func seedBanner(id, image string, active bool, createdAt time.Time) banner.Banner {
	return banner.Banner{
		ID:        id,
		Image:     image,
		IsActive:  active,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func TestGetActiveBannerHandler(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name           string
		store          *fakeBannersStore
		wantStatusCode int
		wantImage      string
	}{
		{
			name: "success",
			store: &fakeBannersStore{banners: []banner.Banner{
				seedBanner("b1", "/uploads/one.webp", false, now.Add(-time.Hour)),
				seedBanner("b2", "/uploads/two.webp", true, now),
			}},
			wantStatusCode: http.StatusOK,
			wantImage:      "/uploads/two.webp",
		},
		{
			name:           "no_active_banner",
			store:          &fakeBannersStore{},
			wantStatusCode: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			h := handlers.NewBannersHandler(tt.store, &fakeUploader{}, nil)
			r := setupRouter(http.MethodGet, "/banner", h.GetActiveBanner)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/banner", nil))

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			if tt.wantStatusCode == http.StatusOK {
				var got banner.Banner
				if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
					t.Fatalf("failed to unmarshal response: %v", err)
				}
				if got.Image != tt.wantImage {
					t.Fatalf("got image %q, want %q", got.Image, tt.wantImage)
				}
			}
		})
	}
}

func TestGetActiveBannerHandler_CacheHit(t *testing.T) {
	now := time.Now().UTC()

	store := &fakeBannersStore{banners: []banner.Banner{
		seedBanner("b1", "/uploads/one.webp", true, now),
	}}

	c := cache.NewMemory(30 * time.Second)
	h := handlers.NewBannersHandler(store, &fakeUploader{}, c)
	r := setupRouter(http.MethodGet, "/banner", h.GetActiveBanner)

	w1 := httptest.NewRecorder()
	r.ServeHTTP(w1, httptest.NewRequest(http.MethodGet, "/banner", nil))

	if w1.Code != http.StatusOK {
		t.Fatalf("first call got %d body=%s", w1.Code, w1.Body.String())
	}

	// mutate the store behind the cache; the cached copy should win
	store.banners[0].Image = "/uploads/changed.webp"

	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, httptest.NewRequest(http.MethodGet, "/banner", nil))

	if w2.Code != http.StatusOK {
		t.Fatalf("second call got %d body=%s", w2.Code, w2.Body.String())
	}

	if w2.Body.String() != w1.Body.String() {
		t.Fatalf("expected cached response, got %s", w2.Body.String())
	}
}

func TestUploadBannerHandler(t *testing.T) {
	now := time.Now().UTC()

	store := &fakeBannersStore{banners: []banner.Banner{
		seedBanner("b1", "/uploads/one.webp", true, now.Add(-time.Hour)),
	}}

	h := handlers.NewBannersHandler(store, &fakeUploader{}, nil)
	r := setupRouter(http.MethodPost, "/banner", h.UploadBanner)

	body, contentType := multipartBody(t, nil, "fresh.jpg")
	req := httptest.NewRequest(http.MethodPost, "/banner", body)
	req.Header.Set("Content-Type", contentType)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}

	if store.activeCount() != 1 {
		t.Fatalf("expected exactly one active banner, got %d", store.activeCount())
	}

	active, err := store.GetActive(context.Background())
	if err != nil {
		t.Fatalf("GetActive: %v", err)
	}
	if active.Image != "/uploads/test.webp" {
		t.Fatalf("expected the new upload to be active, got %q", active.Image)
	}
}

func TestUploadBannerHandler_MissingImage(t *testing.T) {
	store := &fakeBannersStore{}

	h := handlers.NewBannersHandler(store, &fakeUploader{}, nil)
	r := setupRouter(http.MethodPost, "/banner", h.UploadBanner)

	body, contentType := multipartBody(t, nil, "")
	req := httptest.NewRequest(http.MethodPost, "/banner", body)
	req.Header.Set("Content-Type", contentType)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}

	if len(store.banners) != 0 {
		t.Fatalf("expected no banner to be created, got %d", len(store.banners))
	}
}

func TestUpdateBannerStatusHandler(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name           string
		url            string
		body           string
		wantStatusCode int
		checkStore     func(*testing.T, *fakeBannersStore)
	}{
		{
			name:           "activating_deactivates_others",
			url:            "/banner/b1",
			body:           `{"isActive": true}`,
			wantStatusCode: http.StatusOK,
			checkStore: func(t *testing.T, s *fakeBannersStore) {
				if s.activeCount() != 1 {
					t.Fatalf("expected exactly one active banner, got %d", s.activeCount())
				}
				active, _ := s.GetActive(context.Background())
				if active.ID != "b1" {
					t.Fatalf("expected b1 active, got %s", active.ID)
				}
			},
		},
		{
			name:           "deactivating_leaves_none",
			url:            "/banner/b2",
			body:           `{"isActive": false}`,
			wantStatusCode: http.StatusOK,
			checkStore: func(t *testing.T, s *fakeBannersStore) {
				if s.activeCount() != 0 {
					t.Fatalf("expected no active banner, got %d", s.activeCount())
				}
			},
		},
		{
			name:           "missing_flag",
			url:            "/banner/b1",
			body:           `{}`,
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "not_found",
			url:            "/banner/missing",
			body:           `{"isActive": true}`,
			wantStatusCode: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			store := &fakeBannersStore{banners: []banner.Banner{
				seedBanner("b1", "/uploads/one.webp", false, now.Add(-time.Hour)),
				seedBanner("b2", "/uploads/two.webp", true, now),
			}}

			h := handlers.NewBannersHandler(store, &fakeUploader{}, nil)
			r := setupRouter(http.MethodPut, "/banner/:id", h.UpdateBannerStatus)

			req := httptest.NewRequest(http.MethodPut, tt.url, bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			if tt.checkStore != nil {
				tt.checkStore(t, store)
			}
		})
	}
}

func TestDeleteBannerHandler(t *testing.T) {
	now := time.Now().UTC()

	t.Run("deleting_active_promotes_newest", func(t *testing.T) {
		store := &fakeBannersStore{banners: []banner.Banner{
			seedBanner("b1", "/uploads/one.webp", false, now.Add(-2*time.Hour)),
			seedBanner("b2", "/uploads/two.webp", false, now.Add(-time.Hour)),
			seedBanner("b3", "/uploads/three.webp", true, now),
		}}
		up := &fakeUploader{}

		h := handlers.NewBannersHandler(store, up, nil)
		r := setupRouter(http.MethodDelete, "/banner/:id", h.DeleteBanner)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/banner/b3", nil))

		if w.Code != http.StatusOK {
			t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
		}

		if store.activeCount() != 1 {
			t.Fatalf("expected exactly one active banner after delete, got %d", store.activeCount())
		}

		active, _ := store.GetActive(context.Background())
		if active.ID != "b2" {
			t.Fatalf("expected newest survivor b2 to be promoted, got %s", active.ID)
		}

		if len(up.removed) != 1 || up.removed[0] != "/uploads/three.webp" {
			t.Fatalf("expected stored image to be removed, got %v", up.removed)
		}
	})

	t.Run("deleting_inactive_keeps_active", func(t *testing.T) {
		store := &fakeBannersStore{banners: []banner.Banner{
			seedBanner("b1", "/uploads/one.webp", false, now.Add(-time.Hour)),
			seedBanner("b2", "/uploads/two.webp", true, now),
		}}

		h := handlers.NewBannersHandler(store, &fakeUploader{}, nil)
		r := setupRouter(http.MethodDelete, "/banner/:id", h.DeleteBanner)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/banner/b1", nil))

		if w.Code != http.StatusOK {
			t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
		}

		active, _ := store.GetActive(context.Background())
		if active.ID != "b2" {
			t.Fatalf("expected b2 to stay active, got %s", active.ID)
		}
	})

	t.Run("not_found", func(t *testing.T) {
		store := &fakeBannersStore{}

		h := handlers.NewBannersHandler(store, &fakeUploader{}, nil)
		r := setupRouter(http.MethodDelete, "/banner/:id", h.DeleteBanner)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/banner/missing", nil))

		if w.Code != http.StatusNotFound {
			t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
		}
	})
}

func TestListBannersHandler(t *testing.T) {
	now := time.Now().UTC()

	store := &fakeBannersStore{banners: []banner.Banner{
		seedBanner("b1", "/uploads/one.webp", false, now.Add(-time.Hour)),
		seedBanner("b2", "/uploads/two.webp", true, now),
	}}

	h := handlers.NewBannersHandler(store, &fakeUploader{}, nil)
	r := setupRouter(http.MethodGet, "/banner/all", h.ListBanners)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/banner/all", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}

	var got []banner.Banner
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d banners, want 2", len(got))
	}
}
