// Package images ingests uploaded images, indexes them under every path an
// author is likely to type, and rewrites image references in markdown to
// inline data URIs.
//
// Uploads above a hard ceiling are rejected. Uploads above the recompression
// threshold are scaled into a bounding box and re-encoded: opaque images
// become JPEG, images with transparency stay PNG. When the first encode is
// still above the secondary threshold one more, lower quality pass runs.
package images

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"net/http"
	"path"
	"strings"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/conneroisu/folio/internal/errors"
	"github.com/conneroisu/folio/internal/logging"
)

const (
	MIMEPNG  = "image/png"
	MIMEJPEG = "image/jpeg"
	MIMEGIF  = "image/gif"
	MIMEWebP = "image/webp"
	MIMEBMP  = "image/bmp"
	MIMESVG  = "image/svg+xml"
)

// Config holds the size limits applied on ingest.
type Config struct {
	// MaxUploadBytes is the hard ceiling; larger uploads are rejected.
	MaxUploadBytes int64
	// RecompressThreshold is the size above which uploads are re-encoded.
	RecompressThreshold int64
	// SecondaryThreshold triggers one more lower quality pass.
	SecondaryThreshold int64
	MaxWidth           int
	MaxHeight          int
}

// DefaultConfig returns the standard limits.
func DefaultConfig() Config {
	return Config{
		MaxUploadBytes:      10 << 20,
		RecompressThreshold: 1 << 20,
		SecondaryThreshold:  512 << 10,
		MaxWidth:            1920,
		MaxHeight:           1080,
	}
}

// Asset is an uploaded file.
type Asset struct {
	Name string
	Data []byte
}

// EmbeddedImage is an ingested image in its inlineable form.
type EmbeddedImage struct {
	Name         string
	MIME         string
	Width        int
	Height       int
	OriginalSize int64
	Size         int64
	Quality      int
	Recompressed bool
	DataURI      string
}

// Resolver ingests assets.
type Resolver struct {
	config Config
	logger logging.Logger
}

// NewResolver creates a resolver. Zero config fields take their defaults.
func NewResolver(cfg Config, logger logging.Logger) *Resolver {
	def := DefaultConfig()
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = def.MaxUploadBytes
	}
	if cfg.RecompressThreshold <= 0 {
		cfg.RecompressThreshold = def.RecompressThreshold
	}
	if cfg.SecondaryThreshold <= 0 {
		cfg.SecondaryThreshold = def.SecondaryThreshold
	}
	if cfg.MaxWidth <= 0 {
		cfg.MaxWidth = def.MaxWidth
	}
	if cfg.MaxHeight <= 0 {
		cfg.MaxHeight = def.MaxHeight
	}
	return &Resolver{config: cfg, logger: logging.OrNop(logger).WithComponent("images")}
}

// Config returns the effective limits.
func (r *Resolver) Config() Config {
	return r.config
}

// Ingest validates, optionally recompresses and embeds one asset. Errors are
// *errors.Diagnostic of kind UploadRejected or EncodeFailed.
func (r *Resolver) Ingest(ctx context.Context, asset Asset) (*EmbeddedImage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	size := int64(len(asset.Data))
	if size > r.config.MaxUploadBytes {
		return nil, errors.UploadTooLarge(asset.Name, size, r.config.MaxUploadBytes)
	}

	mime := detectMIME(asset)
	if !strings.HasPrefix(mime, "image/") {
		return nil, errors.UploadNotImage(asset.Name, mime)
	}

	if mime == MIMESVG {
		return r.verbatim(asset, mime, 0, 0), nil
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(asset.Data))
	if err != nil {
		return nil, errors.UploadUndecodable(asset.Name, err)
	}

	// Animated GIFs would lose frames on re-encode.
	if size <= r.config.RecompressThreshold || format == "gif" {
		return r.verbatim(asset, mime, cfg.Width, cfg.Height), nil
	}

	img, _, err := image.Decode(bytes.NewReader(asset.Data))
	if err != nil {
		return nil, errors.UploadUndecodable(asset.Name, err)
	}

	embedded, err := r.recompress(asset, img)
	if err != nil {
		return nil, err
	}

	r.logger.Debug(ctx, "image recompressed",
		"asset", asset.Name,
		"original", size,
		"size", embedded.Size,
		"quality", embedded.Quality,
		"mime", embedded.MIME)

	return embedded, nil
}

func (r *Resolver) verbatim(asset Asset, mime string, width, height int) *EmbeddedImage {
	size := int64(len(asset.Data))
	return &EmbeddedImage{
		Name:         asset.Name,
		MIME:         mime,
		Width:        width,
		Height:       height,
		OriginalSize: size,
		Size:         size,
		DataURI:      EncodeDataURI(mime, asset.Data),
	}
}

func (r *Resolver) recompress(asset Asset, img image.Image) (*EmbeddedImage, error) {
	bounds := img.Bounds()
	width, height := FitWithin(bounds.Dx(), bounds.Dy(), r.config.MaxWidth, r.config.MaxHeight)

	scaled := scale(img, width, height)
	opaque := isOpaque(img)
	quality := QualityFor(int64(len(asset.Data)), r.config.RecompressThreshold)

	data, mime, err := encode(scaled, opaque, quality)
	if err != nil {
		return nil, errors.EncodeFailed(asset.Name, err)
	}

	if int64(len(data)) > r.config.SecondaryThreshold {
		quality = SecondPassQuality(quality)
		second := scaled
		if !opaque {
			// PNG has no quality knob, so the second pass trades resolution.
			second = scale(scaled, width*3/4, height*3/4)
			width, height = second.Bounds().Dx(), second.Bounds().Dy()
		}
		data, mime, err = encode(second, opaque, quality)
		if err != nil {
			return nil, errors.EncodeFailed(asset.Name, err)
		}
	}

	if !opaque {
		quality = 0
	}

	return &EmbeddedImage{
		Name:         asset.Name,
		MIME:         mime,
		Width:        width,
		Height:       height,
		OriginalSize: int64(len(asset.Data)),
		Size:         int64(len(data)),
		Quality:      quality,
		Recompressed: true,
		DataURI:      EncodeDataURI(mime, data),
	}, nil
}

// QualityFor picks a JPEG quality from how far size overshoots threshold.
func QualityFor(size, threshold int64) int {
	if threshold <= 0 {
		return 85
	}
	ratio := float64(size) / float64(threshold)
	switch {
	case ratio > 4:
		return 70
	case ratio > 2:
		return 80
	default:
		return 85
	}
}

// SecondPassQuality is the quality used when the first encode is still too
// large.
func SecondPassQuality(q int) int {
	if q-25 < 40 {
		return 40
	}
	return q - 25
}

// FitWithin scales width and height down to fit maxW x maxH, keeping the
// aspect ratio. Images already inside the box are unchanged.
func FitWithin(width, height, maxW, maxH int) (int, int) {
	if width <= 0 || height <= 0 {
		return width, height
	}
	if width <= maxW && height <= maxH {
		return width, height
	}
	ratio := float64(maxW) / float64(width)
	if r := float64(maxH) / float64(height); r < ratio {
		ratio = r
	}
	w := int(float64(width)*ratio + 0.5)
	h := int(float64(height)*ratio + 0.5)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}

func scale(img image.Image, width, height int) image.Image {
	b := img.Bounds()
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	if b.Dx() == width && b.Dy() == height {
		return img
	}
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

func isOpaque(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a != 0xffff {
				return false
			}
		}
	}
	return true
}

func encode(img image.Image, opaque bool, quality int) ([]byte, string, error) {
	var buf bytes.Buffer
	if opaque {
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), MIMEJPEG, nil
	}
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), MIMEPNG, nil
}

func detectMIME(asset Asset) string {
	mime := http.DetectContentType(asset.Data)
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	if strings.EqualFold(path.Ext(asset.Name), ".svg") && looksLikeSVG(asset.Data) {
		return MIMESVG
	}
	return mime
}

func looksLikeSVG(data []byte) bool {
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	return bytes.Contains(bytes.ToLower(head), []byte("<svg"))
}

// EncodeDataURI builds a base64 data URI.
func EncodeDataURI(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// ParseDataURI splits a base64 data URI into its MIME type and bytes.
func ParseDataURI(uri string) (string, []byte, error) {
	if !strings.HasPrefix(uri, "data:") {
		return "", nil, fmt.Errorf("invalid data URI format")
	}
	meta, payload, ok := strings.Cut(uri[len("data:"):], ",")
	if !ok {
		return "", nil, fmt.Errorf("invalid data URI format")
	}
	if !strings.HasSuffix(meta, ";base64") {
		return "", nil, fmt.Errorf("missing base64 marker")
	}
	if payload == "" {
		return "", nil, fmt.Errorf("no image data")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("invalid base64 data: %w", err)
	}
	return strings.TrimSuffix(meta, ";base64"), data, nil
}

// FromDataURI rebuilds an EmbeddedImage from a persisted data URI.
func FromDataURI(name, uri string) (*EmbeddedImage, error) {
	mime, data, err := ParseDataURI(uri)
	if err != nil {
		return nil, fmt.Errorf("image %s: %w", name, err)
	}
	img := &EmbeddedImage{
		Name:         name,
		MIME:         mime,
		OriginalSize: int64(len(data)),
		Size:         int64(len(data)),
		DataURI:      uri,
	}
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		img.Width, img.Height = cfg.Width, cfg.Height
	}
	return img, nil
}
