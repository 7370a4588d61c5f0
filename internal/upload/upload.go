package upload

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/geocoder89/buildhub/internal/config"
	"github.com/geocoder89/buildhub/internal/observability"
)

// PublicPrefix is the URL prefix the stored files are served under.
const PublicPrefix = "/uploads"

var (
	ErrNoFile      = errors.New("no file in request")
	ErrInvalidType = errors.New("only image files are allowed")
	ErrTooLarge    = errors.New("file exceeds the maximum upload size")
)

var allowedExts = map[string]struct{}{
	".jpeg": {},
	".jpg":  {},
	".png":  {},
	".gif":  {},
	".webp": {},
}

// File describes a stored upload. After Transcode the fields point at the
// webp artifact; on transcode failure they keep pointing at the ingested
// original.
type File struct {
	Name        string
	Path        string
	PublicPath  string
	ContentType string
	Size        int64
}

type Pipeline struct {
	dir       string
	maxBytes  int64
	quality   int
	maxWidth  int
	maxHeight int
	log       *slog.Logger
	prom      *observability.Prom
}

func NewPipeline(cfg config.Config, log *slog.Logger, prom *observability.Prom) (*Pipeline, error) {
	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	return &Pipeline{
		dir:       cfg.UploadDir,
		maxBytes:  cfg.MaxUploadBytes,
		quality:   cfg.WebPQuality,
		maxWidth:  cfg.MaxImageWidth,
		maxHeight: cfg.MaxImageHeight,
		log:       log,
		prom:      prom,
	}, nil
}

func (p *Pipeline) Dir() string {
	return p.dir
}

// Process runs both stages: ingest, then best-effort transcode.
func (p *Pipeline) Process(fh *multipart.FileHeader) (*File, error) {
	f, err := p.Ingest(fh)

	if err != nil {
		return nil, err
	}

	p.Transcode(f)

	return f, nil
}

// Ingest validates the upload and writes the raw bytes to a unique
// filename under the pipeline's directory.
func (p *Pipeline) Ingest(fh *multipart.FileHeader) (*File, error) {
	if fh == nil {
		return nil, ErrNoFile
	}

	ext := strings.ToLower(filepath.Ext(fh.Filename))

	if _, ok := allowedExts[ext]; !ok {
		return nil, ErrInvalidType
	}

	if !allowedContentType(fh.Header.Get("Content-Type")) {
		return nil, ErrInvalidType
	}

	if fh.Size > p.maxBytes {
		return nil, ErrTooLarge
	}

	name := fmt.Sprintf("%d-%d%s", time.Now().UnixMilli(), rand.IntN(1_000_000_000), ext)
	dst := filepath.Join(p.dir, name)

	src, err := fh.Open()

	if err != nil {
		return nil, err
	}

	defer src.Close()

	out, err := os.Create(dst)

	if err != nil {
		return nil, err
	}

	written, err := io.Copy(out, src)

	if cerr := out.Close(); err == nil {
		err = cerr
	}

	if err != nil {
		_ = os.Remove(dst)
		return nil, err
	}

	return &File{
		Name:        name,
		Path:        dst,
		PublicPath:  path.Join(PublicPrefix, name),
		ContentType: fh.Header.Get("Content-Type"),
		Size:        written,
	}, nil
}

// Remove deletes the stored file a public path refers to. Absence is not
// an error; records may outlive their files.
func (p *Pipeline) Remove(publicPath string) error {
	if publicPath == "" {
		return nil
	}

	err := os.Remove(filepath.Join(p.dir, path.Base(publicPath)))

	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	return nil
}

// The declared content type must name one of the allowed image formats,
// matched case-insensitively the way the original filter did.
func allowedContentType(ct string) bool {
	ct = strings.ToLower(ct)

	for _, t := range []string{"jpeg", "jpg", "png", "gif", "webp"} {
		if strings.Contains(ct, t) {
			return true
		}
	}

	return false
}
