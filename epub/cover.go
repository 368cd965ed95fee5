package epub

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/bmp"
)

// ErrNoCover indicates no cover image could be discovered with either
// the EPUB3 or EPUB2 strategy.
var ErrNoCover = errors.New("epub: no cover image found")

const defaultSVGSize = 1024

// CoverID returns the manifest id of the cover image. EPUB3 marks it
// with the cover-image property; for EPUB2 the common practice is a
// <meta name="cover"> whose content is the resource id.
func (d *Document) CoverID() (string, bool) {
	if d.IsVersion3() {
		for id, res := range d.Resources {
			if res.HasProperty("cover-image") {
				return id, true
			}
		}
	}
	if m, ok := d.Mdata("cover"); ok && m.Value != "" {
		if _, exists := d.Resources[m.Value]; exists {
			return m.Value, true
		}
	}
	return "", false
}

// Cover returns the cover bytes and mime. SVG covers are rasterized to
// PNG so every host receives a bitmap.
func (d *Document) Cover() ([]byte, string, error) {
	id, ok := d.CoverID()
	if !ok {
		return nil, "", ErrNoCover
	}
	data, mime, err := d.ResourceByID(id)
	if err != nil {
		return nil, "", err
	}
	if strings.Contains(strings.ToLower(mime), "svg") {
		png, err := rasterizeSVGToPNG(data, 0, 0)
		if err != nil {
			return nil, "", err
		}
		return png, "image/png", nil
	}
	return data, mime, nil
}

// CoverThumbnail returns the cover scaled down so its longest edge does
// not exceed maxEdge, re-encoded as PNG. maxEdge <= 0 returns the
// original bytes.
func (d *Document) CoverThumbnail(maxEdge int) ([]byte, string, error) {
	data, mime, err := d.Cover()
	if err != nil {
		return nil, "", err
	}
	if maxEdge <= 0 {
		return data, mime, nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		// fall back to bmp which image.Decode does not register by default
		if img, err = bmp.Decode(bytes.NewReader(data)); err != nil {
			return nil, "", err
		}
	}
	b := img.Bounds()
	if b.Dx() <= maxEdge && b.Dy() <= maxEdge {
		return data, mime, nil
	}
	fitted := imaging.Fit(img, maxEdge, maxEdge, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, fitted, imaging.PNG); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), "image/png", nil
}

// rasterizeSVGToPNG renders SVG onto a white canvas. When target
// dimensions are zero the viewBox size is used with a fallback for
// dimensionless documents.
func rasterizeSVGToPNG(svgData []byte, targetW, targetH int) ([]byte, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(svgData))
	if err != nil {
		return nil, err
	}

	w := int(math.Ceil(icon.ViewBox.W))
	h := int(math.Ceil(icon.ViewBox.H))
	if w <= 0 {
		w = defaultSVGSize
	}
	if h <= 0 {
		h = defaultSVGSize
	}
	if targetW > 0 && targetH > 0 {
		scale := math.Min(float64(targetW)/float64(w), float64(targetH)/float64(h))
		w = max(int(math.Round(float64(w)*scale)), 1)
		h = max(int(math.Round(float64(h)*scale)), 1)
	}

	icon.SetTarget(0, 0, float64(w), float64(h))

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.RGBA{255, 255, 255, 255}}, image.Point{}, draw.Src)

	scanner := rasterx.NewScannerGV(w, h, dst, dst.Bounds())
	icon.Draw(rasterx.NewDasher(w, h, scanner), 1.0)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, dst, imaging.PNG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
