package upload

import (
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"

	// webp inputs can be re-uploaded artifacts; register the decoder.
	_ "golang.org/x/image/webp"
)

// Transcode re-encodes an ingested file to webp, bounded to the configured
// dimensions, and only then removes the original. Webp uploads already
// within bounds pass through untouched; oversized ones are re-encoded in
// place. Best effort: any failure leaves the ingested file as-is and the
// caller proceeds with it.
func (p *Pipeline) Transcode(f *File) {
	isWebp := strings.EqualFold(filepath.Ext(f.Name), ".webp")

	src, err := imaging.Open(f.Path)

	if err != nil {
		if isWebp {
			p.countTranscode("skipped")
			return
		}
		p.log.Warn("transcode skipped: decode failed", "file", f.Name, "err", err)
		p.countTranscode("failed")
		return
	}

	oversized := src.Bounds().Dx() > p.maxWidth || src.Bounds().Dy() > p.maxHeight

	if isWebp && !oversized {
		p.countTranscode("skipped")
		return
	}

	// Fit only ever scales down, preserving aspect ratio.
	if oversized {
		src = imaging.Fit(src, p.maxWidth, p.maxHeight, imaging.Lanczos)
	}

	base := strings.TrimSuffix(f.Name, filepath.Ext(f.Name))
	webpName := base + ".webp"
	webpPath := filepath.Join(p.dir, webpName)

	// Encode to a temp file first; webpPath may be the ingested file
	// itself when the upload was an oversized webp.
	tmpPath := webpPath + ".tmp"

	out, err := os.Create(tmpPath)

	if err != nil {
		p.log.Warn("transcode skipped: create failed", "file", webpName, "err", err)
		p.countTranscode("failed")
		return
	}

	err = webp.Encode(out, src, &webp.Options{Quality: float32(p.quality)})

	if cerr := out.Close(); err == nil {
		err = cerr
	}

	if err != nil {
		// Never advance the reference past a partial artifact.
		_ = os.Remove(tmpPath)
		p.log.Warn("transcode skipped: encode failed", "file", f.Name, "err", err)
		p.countTranscode("failed")
		return
	}

	info, err := os.Stat(tmpPath)

	if err != nil {
		_ = os.Remove(tmpPath)
		p.countTranscode("failed")
		return
	}

	if err := os.Rename(tmpPath, webpPath); err != nil {
		_ = os.Remove(tmpPath)
		p.log.Warn("transcode skipped: rename failed", "file", webpName, "err", err)
		p.countTranscode("failed")
		return
	}

	// The artifact is complete on disk; now drop the original and any
	// stray siblings sharing the base name.
	if f.Path != webpPath {
		if err := os.Remove(f.Path); err != nil {
			p.log.Warn("could not remove original after transcode", "file", f.Name, "err", err)
		}
	}
	p.sweepSiblings(base)

	f.Name = webpName
	f.Path = webpPath
	f.PublicPath = path.Join(PublicPrefix, webpName)
	f.ContentType = "image/webp"
	f.Size = info.Size()

	p.log.Debug("image transcoded", "file", webpName, "bytes", info.Size())
	p.countTranscode("ok")
}

// sweepSiblings removes leftovers that share the exact base name under a
// different extension. The match requires the dot boundary so an upload
// whose random suffix merely extends this one's is never touched.
func (p *Pipeline) sweepSiblings(base string) {
	entries, err := os.ReadDir(p.dir)

	if err != nil {
		return
	}

	for _, e := range entries {
		name := e.Name()

		if strings.HasPrefix(name, base+".") && !strings.HasSuffix(name, ".webp") {
			if err := os.Remove(filepath.Join(p.dir, name)); err != nil {
				p.log.Warn("could not remove stray upload", "file", name, "err", err)
			}
		}
	}
}

func (p *Pipeline) countTranscode(result string) {
	if p.prom != nil {
		p.prom.TranscodeResults.WithLabelValues(result).Inc()
	}
}
