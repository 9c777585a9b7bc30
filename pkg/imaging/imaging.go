// Package imaging validates uploaded product images, fits them inside a
// bounding box, stamps an optional watermark in the south-east corner and
// writes the result to a storage.Disk.
//
// Decoding and scaling are CPU heavy, so every transform runs on a bounded
// workerpool.Pool.
package imaging

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"

	"github.com/shashiranjanraj/catalog/pkg/apperr"
	"github.com/shashiranjanraj/catalog/pkg/storage"
	"github.com/shashiranjanraj/catalog/pkg/workerpool"
)

// Upload is one file received from a client.
type Upload struct {
	Filename string
	Data     []byte
}

// Options configures a Processor.
type Options struct {
	MaxFileSize  int64
	MaxFiles     int
	AllowedTypes []string
	MaxWidth     int
	MaxHeight    int
	// MaxPixels caps the declared width x height of an input before it is
	// decoded.
	MaxPixels int64
	// Watermark is composited as-is; scale it with LoadWatermark.
	Watermark image.Image
}

// DefaultMaxPixels bounds decoded inputs to about 160 MiB of RGBA.
const DefaultMaxPixels = 40_000_000

// DefaultOptions returns 50 MiB, 3 files, JPEG/PNG, a 1200x800 box and
// DefaultMaxPixels.
func DefaultOptions() Options {
	return Options{
		MaxFileSize:  50 << 20,
		MaxFiles:     3,
		AllowedTypes: []string{"image/jpeg", "image/png"},
		MaxWidth:     1200,
		MaxHeight:    800,
		MaxPixels:    DefaultMaxPixels,
	}
}

// Encoded is an upload that passed validation and was transformed. Nothing
// has been written for it yet.
type Encoded struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Processor turns uploads into stored files.
type Processor struct {
	opts Options
	pool *workerpool.Pool
	now  func() time.Time
}

// NewProcessor returns a Processor that runs transforms on pool.
func NewProcessor(opts Options, pool *workerpool.Pool) *Processor {
	def := DefaultOptions()
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = def.MaxFileSize
	}
	if opts.MaxFiles <= 0 {
		opts.MaxFiles = def.MaxFiles
	}
	if len(opts.AllowedTypes) == 0 {
		opts.AllowedTypes = def.AllowedTypes
	}
	if opts.MaxWidth <= 0 || opts.MaxHeight <= 0 {
		opts.MaxWidth, opts.MaxHeight = def.MaxWidth, def.MaxHeight
	}
	if opts.MaxPixels <= 0 {
		opts.MaxPixels = def.MaxPixels
	}
	return &Processor{opts: opts, pool: pool, now: time.Now}
}

// MaxFiles is the per-request upload limit.
func (p *Processor) MaxFiles() int { return p.opts.MaxFiles }

// MaxFileSize is the per-file byte limit.
func (p *Processor) MaxFileSize() int64 { return p.opts.MaxFileSize }

// CheckBatch validates every upload before anything is written, so a bad
// file rejects the whole request.
func (p *Processor) CheckBatch(uploads []Upload) error {
	if len(uploads) > p.opts.MaxFiles {
		return apperr.Validation(fmt.Sprintf("at most %d images per request", p.opts.MaxFiles),
			map[string]string{"images": fmt.Sprintf("at most %d files", p.opts.MaxFiles)})
	}
	for _, u := range uploads {
		if _, err := p.Validate(u); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks size, sniffed content type and declared dimensions,
// returning the MIME type. Only the image header is decoded.
func (p *Processor) Validate(u Upload) (string, error) {
	if int64(len(u.Data)) > p.opts.MaxFileSize {
		return "", apperr.Validation("image too large",
			map[string]string{"images": fmt.Sprintf("%s exceeds %d bytes", u.Filename, p.opts.MaxFileSize)})
	}
	if len(u.Data) == 0 {
		return "", apperr.Validation("empty image", map[string]string{"images": u.Filename + " is empty"})
	}

	contentType := ""
	mime := mimetype.Detect(u.Data)
	for _, allowed := range p.opts.AllowedTypes {
		if mime.Is(allowed) {
			contentType = allowed
			break
		}
	}
	if contentType == "" {
		return "", apperr.Validation("only image files are allowed",
			map[string]string{"images": fmt.Sprintf("%s has unsupported type %s", u.Filename, mime.String())})
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(u.Data))
	if err != nil {
		return "", undecodable(u.Filename, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > p.opts.MaxPixels {
		return "", apperr.Validation("image dimensions too large",
			map[string]string{"images": fmt.Sprintf("%s is %dx%d, limit is %d pixels", u.Filename, cfg.Width, cfg.Height, p.opts.MaxPixels)})
	}
	return contentType, nil
}

func undecodable(filename string, err error) error {
	return apperr.Validation("image could not be decoded",
		map[string]string{"images": fmt.Sprintf("%s: %v", filename, err)})
}

// Prepare checks the batch, then decodes and transforms every upload on the
// pool. It writes nothing, so a corrupt file fails the request before any
// stored state changes. The result is indexed like uploads.
func (p *Processor) Prepare(ctx context.Context, uploads []Upload) ([]Encoded, error) {
	if err := p.CheckBatch(uploads); err != nil {
		return nil, err
	}

	out := make([]Encoded, len(uploads))
	g, gctx := errgroup.WithContext(ctx)
	for i, u := range uploads {
		i, u := i, u
		g.Go(func() error {
			contentType, err := p.Validate(u)
			if err != nil {
				return err
			}
			return p.pool.Do(gctx, func() error {
				data, err := p.transform(u, contentType)
				if err != nil {
					return err
				}
				out[i] = Encoded{Filename: u.Filename, ContentType: contentType, Data: data}
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Store writes e to disk under a fresh unique name and returns that name.
func (p *Processor) Store(ctx context.Context, disk storage.Disk, e Encoded) (string, error) {
	name := p.filename(e.ContentType)
	if err := disk.Put(ctx, name, e.Data, e.ContentType); err != nil {
		return "", fmt.Errorf("imaging: store %s: %w", name, err)
	}
	return name, nil
}

func (p *Processor) transform(u Upload, contentType string) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(u.Data))
	if err != nil {
		return nil, undecodable(u.Filename, err)
	}

	dst := Fit(src, p.opts.MaxWidth, p.opts.MaxHeight)
	if p.opts.Watermark != nil {
		dst = Stamp(dst, p.opts.Watermark)
	}

	var buf bytes.Buffer
	switch contentType {
	case "image/jpeg":
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 90})
	case "image/gif":
		err = gif.Encode(&buf, dst, nil)
	default:
		err = png.Encode(&buf, dst)
	}
	if err != nil {
		return nil, fmt.Errorf("imaging: encode: %w", err)
	}
	return buf.Bytes(), nil
}

func (p *Processor) filename(contentType string) string {
	ext := ".png"
	switch contentType {
	case "image/jpeg":
		ext = ".jpg"
	case "image/gif":
		ext = ".gif"
	}
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("%d-%s%s", p.now().UnixMilli(), id, ext)
}

// FitSize scales w x h to the largest size inside maxW x maxH that keeps the
// aspect ratio.
func FitSize(w, h, maxW, maxH int) (int, int) {
	if w <= 0 || h <= 0 {
		return 0, 0
	}
	// Compare w/maxW against h/maxH without floating point.
	if w*maxH >= h*maxW {
		return maxW, max(1, h*maxW/w)
	}
	return max(1, w*maxH/h), maxH
}

// Fit returns src scaled to fit inside maxW x maxH.
func Fit(src image.Image, maxW, maxH int) image.Image {
	b := src.Bounds()
	w, h := FitSize(b.Dx(), b.Dy(), maxW, maxH)
	if w == b.Dx() && h == b.Dy() {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}

// Stamp composites mark over the south-east corner of img.
func Stamp(img, mark image.Image) image.Image {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)

	mb := mark.Bounds()
	at := image.Rect(b.Dx()-mb.Dx(), b.Dy()-mb.Dy(), b.Dx(), b.Dy())
	draw.Draw(dst, at, mark, mb.Min, draw.Over)
	return dst
}

// LoadWatermark reads a PNG or JPEG and fits it inside box x box.
func LoadWatermark(path string, box int) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("imaging: watermark: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("imaging: watermark decode: %w", err)
	}
	return Fit(img, box, box), nil
}
