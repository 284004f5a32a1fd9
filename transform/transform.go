// Package transform derives new images from uploaded ones.
package transform

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // WebP decoder
)

// Kind names a transformation.
type Kind string

const (
	KindCrop         Kind = "crop"
	KindRounded      Kind = "rounded"
	KindImprove      Kind = "improve"
	KindRemoveObject Kind = "remove_object"
)

// ErrInvalidParams wraps every parameter validation failure.
var ErrInvalidParams = errors.New("invalid transform parameters")

// Params describes one transformation. Only the fields of the chosen Kind are used.
type Params struct {
	Kind Kind `json:"kind"`

	// crop
	Width   int    `json:"width,omitempty"`
	Height  int    `json:"height,omitempty"`
	Gravity string `json:"gravity,omitempty"`

	// rounded
	Radius      int    `json:"radius,omitempty"`
	BorderWidth int    `json:"border_width,omitempty"`
	BorderColor string `json:"border_color,omitempty"`

	// improve
	Mode  string `json:"mode,omitempty"`
	Blend int    `json:"blend,omitempty"`

	// remove_object
	X int `json:"x,omitempty"`
	Y int `json:"y,omitempty"`
}

const maxDimension = 4096

var gravities = map[string]imaging.Anchor{
	"":           imaging.Center,
	"center":     imaging.Center,
	"north":      imaging.Top,
	"south":      imaging.Bottom,
	"east":       imaging.Right,
	"west":       imaging.Left,
	"north_east": imaging.TopRight,
	"north_west": imaging.TopLeft,
	"south_east": imaging.BottomRight,
	"south_west": imaging.BottomLeft,
}

// Validate checks the parameters of the selected kind.
func (p Params) Validate() error {
	switch p.Kind {
	case KindCrop:
		if p.Width <= 0 || p.Height <= 0 || p.Width > maxDimension || p.Height > maxDimension {
			return fmt.Errorf("%w: crop needs width and height between 1 and %d", ErrInvalidParams, maxDimension)
		}
		if _, ok := gravities[strings.ToLower(p.Gravity)]; !ok {
			return fmt.Errorf("%w: unknown gravity %q", ErrInvalidParams, p.Gravity)
		}
	case KindRounded:
		if p.Radius <= 0 {
			return fmt.Errorf("%w: radius must be positive", ErrInvalidParams)
		}
		if p.BorderWidth < 0 {
			return fmt.Errorf("%w: border width must not be negative", ErrInvalidParams)
		}
		if p.BorderWidth > 0 {
			if _, err := parseColor(p.BorderColor); err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidParams, err)
			}
		}
	case KindImprove:
		switch p.Mode {
		case "outdoor", "indoor", "auto", "":
		default:
			return fmt.Errorf("%w: unknown mode %q", ErrInvalidParams, p.Mode)
		}
		if p.Blend < 0 || p.Blend > 100 {
			return fmt.Errorf("%w: blend must be between 0 and 100", ErrInvalidParams)
		}
	case KindRemoveObject:
		if p.Width <= 0 || p.Height <= 0 || p.X < 0 || p.Y < 0 {
			return fmt.Errorf("%w: region needs non-negative x, y and positive width, height", ErrInvalidParams)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidParams, p.Kind)
	}
	return nil
}

// Spec serializes the parameters for storage next to the derived image.
func (p Params) Spec() string {
	b, _ := json.Marshal(p)
	return string(b)
}

// maxPixels bounds the decoded size of any image, whatever its file size.
const maxPixels = maxDimension * maxDimension

var (
	// ErrUnsupportedImage is returned for content that is not a JPEG, PNG, GIF or WebP image.
	ErrUnsupportedImage = errors.New("unsupported image")
	// ErrImageTooLarge is returned when an image has more than maxPixels pixels.
	ErrImageTooLarge = errors.New("image dimensions too large")
)

// Raster formats accepted for upload, by image.DecodeConfig format name.
var formatTypes = map[string]string{
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
}

// Info is what the image header says about the content.
type Info struct {
	Format      string
	ContentType string
	Width       int
	Height      int
}

// Ext returns the file extension stored objects of this format use.
func (i Info) Ext() string {
	if i.Format == "jpeg" {
		return ".jpg"
	}
	return "." + i.Format
}

// Inspect reads the image header from r and checks format and dimensions.
// The returned reader replays the consumed bytes followed by the rest of r.
func Inspect(r io.Reader) (Info, io.Reader, error) {
	var head bytes.Buffer
	cfg, format, err := image.DecodeConfig(io.TeeReader(r, &head))
	replay := io.MultiReader(&head, r)
	if err != nil {
		return Info{}, replay, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	contentType, ok := formatTypes[format]
	if !ok {
		return Info{}, replay, fmt.Errorf("%w: format %q", ErrUnsupportedImage, format)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return Info{}, replay, fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height)
	}
	return Info{Format: format, ContentType: contentType, Width: cfg.Width, Height: cfg.Height}, replay, nil
}

// Decode reads an image, honouring EXIF orientation. The header is checked
// with Inspect first so oversized images are refused before allocation.
func Decode(r io.Reader) (image.Image, error) {
	_, replay, err := Inspect(r)
	if err != nil {
		return nil, err
	}
	img, err := imaging.Decode(replay, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	return img, nil
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// Apply runs the transformation described by p on src.
func Apply(src image.Image, p Params) (image.Image, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	switch p.Kind {
	case KindCrop:
		return imaging.Fill(src, p.Width, p.Height, gravities[strings.ToLower(p.Gravity)], imaging.Lanczos), nil
	case KindRounded:
		return roundCorners(src, p)
	case KindImprove:
		return improve(src, p), nil
	case KindRemoveObject:
		return removeRegion(src, p)
	}
	return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidParams, p.Kind)
}

func improve(src image.Image, p Params) image.Image {
	var out *image.NRGBA
	switch p.Mode {
	case "indoor":
		out = imaging.AdjustGamma(src, 1.2)
		out = imaging.AdjustBrightness(out, 8)
		out = imaging.AdjustContrast(out, 10)
	case "outdoor":
		out = imaging.AdjustSaturation(src, 20)
		out = imaging.AdjustContrast(out, 15)
		out = imaging.Sharpen(out, 0.8)
	default:
		out = imaging.AdjustContrast(src, 10)
		out = imaging.Sharpen(out, 0.5)
	}
	blend := p.Blend
	if blend == 0 {
		blend = 100
	}
	return imaging.Overlay(src, out, image.Pt(0, 0), float64(blend)/100)
}

func removeRegion(src image.Image, p Params) (image.Image, error) {
	b := src.Bounds()
	region := image.Rect(p.X, p.Y, p.X+p.Width, p.Y+p.Height).Add(b.Min).Intersect(b)
	if region.Empty() {
		return nil, fmt.Errorf("%w: region lies outside the image", ErrInvalidParams)
	}

	// Fill the region with the mean colour of a surrounding ring, then blur the
	// neighbourhood so the patch blends into its edges.
	margin := max(max(region.Dx(), region.Dy())/2, 2)
	outer := image.Rect(region.Min.X-margin, region.Min.Y-margin, region.Max.X+margin, region.Max.Y+margin).Intersect(b)
	work := imaging.Crop(src, outer)
	local := region.Sub(outer.Min)

	fill := imaging.New(local.Dx(), local.Dy(), meanOutside(work, local))
	work = imaging.Paste(work, fill, local.Min)
	sigma := float64(max(region.Dx(), region.Dy())) / 4
	patch := imaging.Crop(imaging.Blur(work, sigma), local)
	return imaging.Paste(src, patch, region.Min), nil
}

func meanOutside(img *image.NRGBA, hole image.Rectangle) color.NRGBA {
	var r, g, bl, a, n uint64
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if image.Pt(x, y).In(hole) {
				continue
			}
			c := img.NRGBAAt(x, y)
			r, g, bl, a = r+uint64(c.R), g+uint64(c.G), bl+uint64(c.B), a+uint64(c.A)
			n++
		}
	}
	if n == 0 {
		return color.NRGBA{R: 128, G: 128, B: 128, A: 255}
	}
	return color.NRGBA{R: uint8(r / n), G: uint8(g / n), B: uint8(bl / n), A: uint8(a / n)}
}

func roundCorners(src image.Image, p Params) (image.Image, error) {
	img := imaging.Clone(src)
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	r := min(p.Radius, min(w, h)/2)
	bw := p.BorderWidth
	var border color.NRGBA
	if bw > 0 {
		c, err := parseColor(p.BorderColor)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
		}
		border = c
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			d := cornerDistance(x, y, w, h, r)
			switch {
			case d > float64(r):
				img.SetNRGBA(x, y, color.NRGBA{})
			case bw > 0 && (d > float64(r-bw) || x < bw || y < bw || x >= w-bw || y >= h-bw):
				img.SetNRGBA(x, y, border)
			}
		}
	}
	return img, nil
}

// cornerDistance returns the distance from the centre of the nearest corner arc, or 0
// for pixels that are not inside a corner square.
func cornerDistance(x, y, w, h, r int) float64 {
	cx, cy := -1, -1
	switch {
	case x < r:
		cx = r
	case x >= w-r:
		cx = w - r - 1
	}
	switch {
	case y < r:
		cy = r
	case y >= h-r:
		cy = h - r - 1
	}
	if cx < 0 || cy < 0 {
		return 0
	}
	dx, dy := float64(x-cx), float64(y-cy)
	return math.Sqrt(dx*dx + dy*dy)
}

func parseColor(s string) (color.NRGBA, error) {
	switch strings.ToLower(s) {
	case "", "black":
		return color.NRGBA{A: 255}, nil
	case "white":
		return color.NRGBA{R: 255, G: 255, B: 255, A: 255}, nil
	}
	hex := strings.TrimPrefix(s, "#")
	if len(hex) != 6 {
		return color.NRGBA{}, fmt.Errorf("border colour %q must be a name or #rrggbb", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("border colour %q must be a name or #rrggbb", s)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}
