package chess

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"
	"math"
	"strings"

	"github.com/srwiley/rasterx"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	corechess "github.com/park285/baahaus/internal/chess"
)

type RenderOptions struct {
	Selected  *corechess.Square
	Legal     []corechess.Square
	LastMove  *corechess.Move
	HUDHeader string
	HUDTurn   string
}

type BoardRenderer interface {
	RenderPNG(ctx context.Context, board corechess.Board, opts RenderOptions) ([]byte, error)
}

type pngBoardRenderer struct {
	face font.Face
}

func NewBoardRenderer() BoardRenderer {
	return &pngBoardRenderer{face: basicfont.Face7x13}
}

const (
	squareSize   = 64
	boardPixels  = squareSize * corechess.BoardSize
	sideMargin   = 28
	topMargin    = 96
	bottomMargin = 28

	titleHeight      = 34
	turnPanelHeight  = 26
	gapBetweenPanels = 8
	gapToBoard       = 14
	panelRadius      = 10
	titlePaddingX    = 20
	turnPaddingX     = 16
	titleMinWidth    = 240
	turnMinWidth     = 140
	shadowOffsetY    = 4
)

var (
	lightSquare       = color.RGBA{0xff, 0xff, 0xf0, 0xff}
	darkSquare        = color.RGBA{0x4a, 0x4a, 0x4a, 0xff}
	selectedSquare    = color.RGBA{0x6a, 0x6a, 0x6a, 0xff}
	possibleMove      = color.NRGBA{R: 0x6b, G: 0x9b, B: 0xd1, A: 0xd0}
	possibleCapture   = color.NRGBA{R: 0x6b, G: 0x9b, B: 0xd1, A: 0x80}
	lastMoveArrow     = color.NRGBA{R: 0x6b, G: 0x9b, B: 0xd1, A: 0x90}
	backgroundColor   = color.RGBA{0x2b, 0x2b, 0x2b, 0xff}
	hudPanelColor     = color.NRGBA{R: 0x3a, G: 0x3a, B: 0x3a, A: 0xfa}
	hudTurnPanelColor = color.NRGBA{R: 0x33, G: 0x33, B: 0x33, A: 0xf5}
	hudShadowColor    = color.NRGBA{0, 0, 0, 60}
	hudTextPrimary    = color.NRGBA{R: 0xff, G: 0xff, B: 0xf0, A: 0xff}
	hudTurnTextColor  = color.NRGBA{R: 0xd8, G: 0xd8, B: 0xcc, A: 0xff}
	coordinateColor   = color.NRGBA{R: 0xb0, G: 0xb0, B: 0xa8, A: 0xff}
)

func (r *pngBoardRenderer) RenderPNG(ctx context.Context, board corechess.Board, opts RenderOptions) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	totalWidth := boardPixels + sideMargin*2
	totalHeight := boardPixels + topMargin + bottomMargin
	origin := image.Point{X: sideMargin, Y: topMargin}
	boardRect := image.Rect(origin.X, origin.Y, origin.X+boardPixels, origin.Y+boardPixels)

	img := image.NewRGBA(image.Rect(0, 0, totalWidth, totalHeight))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, imagedraw.Src)

	pen := newPainter(img)
	r.drawHUD(pen, opts, boardRect)
	drawSquares(img, opts.Selected, origin)
	if opts.LastMove != nil {
		drawArrow(pen, opts.LastMove.From, opts.LastMove.To, origin, lastMoveArrow)
	}
	if err := drawPieces(img, &board, opts.Selected, origin); err != nil {
		return nil, err
	}
	drawLegalMarkers(pen, &board, opts.Legal, origin)
	r.drawCoordinates(img, origin)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var pngBuf bytes.Buffer
	if err := png.Encode(&pngBuf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return pngBuf.Bytes(), nil
}

func squareColor(sq corechess.Square) color.Color {
	if (sq.Row+sq.Col)%2 == 0 {
		return lightSquare
	}
	return darkSquare
}

func squareRect(sq corechess.Square, origin image.Point) image.Rectangle {
	x := origin.X + sq.Col*squareSize
	y := origin.Y + sq.Row*squareSize
	return image.Rect(x, y, x+squareSize, y+squareSize)
}

func squareCenter(sq corechess.Square, origin image.Point) image.Point {
	rect := squareRect(sq, origin)
	return image.Point{X: rect.Min.X + squareSize/2, Y: rect.Min.Y + squareSize/2}
}

func drawSquares(dst imagedraw.Image, selected *corechess.Square, origin image.Point) {
	for row := 0; row < corechess.BoardSize; row++ {
		for col := 0; col < corechess.BoardSize; col++ {
			sq := corechess.Square{Row: row, Col: col}
			clr := squareColor(sq)
			if selected != nil && *selected == sq {
				clr = selectedSquare
			}
			imagedraw.Draw(dst, squareRect(sq, origin), image.NewUniform(clr), image.Point{}, imagedraw.Src)
		}
	}
}

func drawPieces(dst imagedraw.Image, board *corechess.Board, selected *corechess.Square, origin image.Point) error {
	for row := 0; row < corechess.BoardSize; row++ {
		for col := 0; col < corechess.BoardSize; col++ {
			sq := corechess.Square{Row: row, Col: col}
			piece := board.At(sq)
			if piece.IsZero() {
				continue
			}
			isSelected := selected != nil && *selected == sq
			img, err := renderPieceImage(piece, isSelected, squareSize)
			if err != nil {
				return err
			}
			imagedraw.Draw(dst, squareRect(sq, origin), img, image.Point{}, imagedraw.Over)
		}
	}
	return nil
}

func drawLegalMarkers(pen *painter, board *corechess.Board, legal []corechess.Square, origin image.Point) {
	for _, sq := range legal {
		if !sq.OnBoard() {
			continue
		}
		if !board.At(sq).IsZero() {
			// a capture tints the whole square, an empty target gets a dot
			imagedraw.Draw(pen.dst, squareRect(sq, origin), image.NewUniform(possibleCapture), image.Point{}, imagedraw.Over)
			continue
		}
		c := squareCenter(sq, origin)
		pen.disc(float64(c.X), float64(c.Y), squareSize/7, possibleMove)
	}
}

func (r *pngBoardRenderer) drawHUD(pen *painter, opts RenderOptions, boardRect image.Rectangle) {
	drawer := &font.Drawer{Dst: pen.dst, Face: r.face}

	title := strings.TrimSpace(opts.HUDHeader)
	if title == "" {
		title = "player vs ai"
	}
	turnText := strings.TrimSpace(opts.HUDTurn)

	turnBottom := boardRect.Min.Y - gapToBoard
	turnTop := turnBottom - turnPanelHeight
	titleBottom := turnTop - gapBetweenPanels

	hudPanel{
		text: title, minWidth: titleMinWidth, padX: titlePaddingX,
		fill: hudPanelColor, ink: hudTextPrimary,
	}.draw(pen, drawer, boardRect, titleBottom-titleHeight, titleBottom)

	if turnText == "" {
		return
	}
	hudPanel{
		text: turnText, minWidth: turnMinWidth, padX: turnPaddingX,
		fill: hudTurnPanelColor, ink: hudTurnTextColor,
	}.draw(pen, drawer, boardRect, turnTop, turnBottom)
}

// hudPanel is one centered caption above the board.
type hudPanel struct {
	text     string
	minWidth int
	padX     int
	fill     color.Color
	ink      color.Color
}

func (p hudPanel) draw(pen *painter, drawer *font.Drawer, boardRect image.Rectangle, top, bottom int) {
	width := max(p.minWidth, drawer.MeasureString(p.text).Round()+p.padX*2)
	width = min(width, boardRect.Dx())
	left := boardRect.Min.X + (boardRect.Dx()-width)/2
	rect := image.Rect(left, top, left+width, bottom)

	pen.roundedRect(rect.Add(image.Pt(0, shadowOffsetY)), panelRadius, hudShadowColor)
	pen.roundedRect(rect, panelRadius, p.fill)

	text := fitText(drawer.Face, p.text, rect.Dx()-p.padX*2)
	if text == "" {
		return
	}
	m := drawer.Face.Metrics()
	baseline := rect.Min.Y + (rect.Dy()+m.Ascent.Ceil()-m.Descent.Ceil())/2
	drawer.Src = image.NewUniform(p.ink)
	drawText(drawer, text, rect.Min.X+rect.Dx()/2, baseline, rect.Min.X)
}

// drawCoordinates labels ranks on the left and files below the board using the algebraic names.
func (r *pngBoardRenderer) drawCoordinates(dst imagedraw.Image, origin image.Point) {
	drawer := &font.Drawer{Dst: dst, Face: r.face, Src: image.NewUniform(coordinateColor)}
	ascent := r.face.Metrics().Ascent.Ceil()
	boardEndY := origin.Y + boardPixels

	for i := 0; i < corechess.BoardSize; i++ {
		native := corechess.NativeSquare(corechess.Square{Row: i, Col: i})
		mid := i*squareSize + squareSize/2
		drawText(drawer, native.Rank().String(), origin.X-sideMargin/2, origin.Y+mid+ascent/2, 0)
		drawText(drawer, native.File().String(), origin.X+mid, boardEndY+ascent+4, 0)
	}
}

// drawText centers text on centerX without starting left of minX.
func drawText(drawer *font.Drawer, text string, centerX, baseline, minX int) {
	if text == "" {
		return
	}
	x := max(centerX-drawer.MeasureString(text).Round()/2, minX)
	drawer.Dot = fixed.P(x, baseline)
	drawer.DrawString(text)
}

// fitText shortens text with a trailing "..." until it is at most maxWidth pixels wide.
func fitText(face font.Face, text string, maxWidth int) string {
	text = strings.TrimSpace(text)
	if text == "" || face == nil {
		return text
	}
	if maxWidth <= 0 {
		return ""
	}
	width := func(s string) int { return font.MeasureString(face, s).Round() }
	if width(text) <= maxWidth {
		return text
	}
	const ellipsis = "..."
	if width(ellipsis) > maxWidth {
		return ""
	}
	runes := []rune(text)
	for n := len(runes) - 1; n > 0; n-- {
		if s := strings.TrimRight(string(runes[:n]), " ") + ellipsis; width(s) <= maxWidth {
			return s
		}
	}
	return ellipsis
}

// drawArrow paints the last move as a shaft with a triangular head, tip on the target center.
func drawArrow(pen *painter, from, to corechess.Square, origin image.Point, clr color.Color) {
	if from == to {
		return
	}
	a, b := squareCenter(from, origin), squareCenter(to, origin)
	sx, sy := float64(a.X), float64(a.Y)
	tx, ty := float64(b.X), float64(b.Y)
	length := math.Hypot(tx-sx, ty-sy)
	if length == 0 {
		return
	}
	ux, uy := (tx-sx)/length, (ty-sy)/length
	nx, ny := -uy, ux

	shaft := length - squareSize*0.45
	if shaft < squareSize*0.35 {
		shaft = length * 0.6
	}
	halfShaft := squareSize * 0.14
	halfHead := squareSize * 0.16
	bx, by := sx+ux*shaft, sy+uy*shaft

	pen.polygon(clr,
		sx-nx*halfShaft, sy-ny*halfShaft,
		bx-nx*halfShaft, by-ny*halfShaft,
		bx-nx*halfHead, by-ny*halfHead,
		tx, ty,
		bx+nx*halfHead, by+ny*halfHead,
		bx+nx*halfShaft, by+ny*halfShaft,
		sx+nx*halfShaft, sy+ny*halfShaft,
	)
}

// painter fills anti-aliased paths onto the board image with rasterx.
type painter struct {
	dst    *image.RGBA
	filler *rasterx.Filler
}

func newPainter(img *image.RGBA) *painter {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	scanner := rasterx.NewScannerGV(w, h, img, img.Bounds())
	return &painter{dst: img, filler: rasterx.NewFiller(w, h, scanner)}
}

func (p *painter) fill(clr color.Color, path func(rasterx.Adder)) {
	p.filler.Clear()
	p.filler.SetColor(clr)
	path(p.filler)
	p.filler.Draw()
	p.filler.Clear()
}

func (p *painter) disc(cx, cy, radius float64, clr color.Color) {
	if radius <= 0 {
		return
	}
	p.fill(clr, func(a rasterx.Adder) { rasterx.AddCircle(cx, cy, radius, a) })
}

// polygon takes x, y pairs.
func (p *painter) polygon(clr color.Color, xy ...float64) {
	if len(xy) < 6 || len(xy)%2 != 0 {
		return
	}
	p.fill(clr, func(a rasterx.Adder) {
		a.Start(pt(xy[0], xy[1]))
		for i := 2; i < len(xy); i += 2 {
			a.Line(pt(xy[i], xy[i+1]))
		}
		a.Stop(true)
	})
}

// bezierCircle is the control point distance for a quarter circle drawn as one cubic.
const bezierCircle = 0.5522847498

func (p *painter) roundedRect(rect image.Rectangle, radius int, clr color.Color) {
	if rect.Empty() {
		return
	}
	r := float64(min(radius, rect.Dx()/2, rect.Dy()/2))
	x0, y0 := float64(rect.Min.X), float64(rect.Min.Y)
	x1, y1 := float64(rect.Max.X), float64(rect.Max.Y)
	if r <= 0 {
		p.polygon(clr, x0, y0, x1, y0, x1, y1, x0, y1)
		return
	}
	k := r * bezierCircle
	p.fill(clr, func(a rasterx.Adder) {
		a.Start(pt(x0+r, y0))
		a.Line(pt(x1-r, y0))
		a.CubeBezier(pt(x1-r+k, y0), pt(x1, y0+r-k), pt(x1, y0+r))
		a.Line(pt(x1, y1-r))
		a.CubeBezier(pt(x1, y1-r+k), pt(x1-r+k, y1), pt(x1-r, y1))
		a.Line(pt(x0+r, y1))
		a.CubeBezier(pt(x0+r-k, y1), pt(x0, y1-r+k), pt(x0, y1-r))
		a.Line(pt(x0, y0+r))
		a.CubeBezier(pt(x0, y0+r-k), pt(x0+r-k, y0), pt(x0+r, y0))
		a.Stop(true)
	})
}

func pt(x, y float64) fixed.Point26_6 {
	return fixed.Point26_6{X: fixed.Int26_6(x * 64), Y: fixed.Int26_6(y * 64)}
}
