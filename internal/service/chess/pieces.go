package chess

import (
	"bytes"
	"embed"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"

	corechess "github.com/park285/baahaus/internal/chess"
)

//go:embed assets/pieces/*.svg
var pieceFiles embed.FS

var (
	whitePieceFill = color.RGBA{0xff, 0xff, 0xfb, 0xff}
	blackPieceFill = color.RGBA{0x3a, 0x3a, 0x3a, 0xff}
	selectedFill   = color.RGBA{0xff, 0x8c, 0x00, 0xff}
)

type pieceCacheKey struct {
	kind corechess.Kind
	fill color.RGBA
	size int
}

var (
	pieceCache   = map[pieceCacheKey]image.Image{}
	pieceCacheMu sync.RWMutex
)

func pieceColors(p corechess.Piece, selected bool) (fill, stroke color.RGBA) {
	switch {
	case selected:
		return selectedFill, blackPieceFill
	case p.Color == corechess.White:
		return whitePieceFill, blackPieceFill
	default:
		return blackPieceFill, whitePieceFill
	}
}

func renderPieceImage(p corechess.Piece, selected bool, size int) (image.Image, error) {
	fill, stroke := pieceColors(p, selected)
	key := pieceCacheKey{kind: p.Kind, fill: fill, size: size}

	pieceCacheMu.RLock()
	if img, ok := pieceCache[key]; ok {
		pieceCacheMu.RUnlock()
		return img, nil
	}
	pieceCacheMu.RUnlock()

	name := pieceAssetName(p.Kind)
	data, err := pieceFiles.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read piece asset %s: %w", name, err)
	}

	icon, err := oksvg.ReadIconStream(bytes.NewReader(tintSVG(data, fill, stroke)))
	if err != nil {
		return nil, fmt.Errorf("parse piece svg: %w", err)
	}
	if icon.ViewBox.W <= 0 {
		icon.ViewBox.W = float64(size)
	}
	if icon.ViewBox.H <= 0 {
		icon.ViewBox.H = float64(size)
	}

	// leave a small margin so strokes do not touch the square edge
	inset := float64(size) * 0.08
	icon.SetTarget(inset, inset, float64(size)-2*inset, float64(size)-2*inset)

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Transparent), image.Point{}, draw.Src)

	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	raster := rasterx.NewDasher(size, size, scanner)
	icon.Draw(raster, 1.0)

	pieceCacheMu.Lock()
	pieceCache[key] = img
	pieceCacheMu.Unlock()

	return img, nil
}

func pieceAssetName(kind corechess.Kind) string {
	return fmt.Sprintf("assets/pieces/%s.svg", kind.String())
}
