package chess

import (
	"fmt"
	"strings"
)

const BoardSize = 8

type Color uint8

const (
	White Color = iota
	Black
)

func (c Color) Opponent() Color {
	if c == White {
		return Black
	}
	return White
}

func (c Color) String() string {
	if c == Black {
		return "black"
	}
	return "white"
}

// ParseColor accepts "white"/"black" and the single-letter forms.
func ParseColor(s string) (Color, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "white", "w":
		return White, true
	case "black", "b":
		return Black, true
	default:
		return White, false
	}
}

type Kind uint8

const (
	NoKind Kind = iota
	Pawn
	Rook
	Knight
	Bishop
	Queen
	King
)

func (k Kind) String() string {
	switch k {
	case Pawn:
		return "pawn"
	case Rook:
		return "rook"
	case Knight:
		return "knight"
	case Bishop:
		return "bishop"
	case Queen:
		return "queen"
	case King:
		return "king"
	default:
		return ""
	}
}

func (k Kind) letter() byte {
	switch k {
	case Pawn:
		return 'p'
	case Rook:
		return 'r'
	case Knight:
		return 'n'
	case Bishop:
		return 'b'
	case Queen:
		return 'q'
	case King:
		return 'k'
	default:
		return 0
	}
}

// Piece is a value type; the zero value is an empty square.
type Piece struct {
	Kind  Kind
	Color Color
}

func (p Piece) IsZero() bool { return p.Kind == NoKind }

// Letter returns the board letter: upper case for white, lower case for black, "" when empty.
func (p Piece) Letter() string {
	l := p.Kind.letter()
	if l == 0 {
		return ""
	}
	if p.Color == White {
		l = l - 'a' + 'A'
	}
	return string(l)
}

func (p Piece) String() string {
	if p.IsZero() {
		return "empty"
	}
	return p.Color.String() + " " + p.Kind.String()
}

func PieceFromLetter(s string) (Piece, bool) {
	if len(s) != 1 {
		return Piece{}, false
	}
	c := s[0]
	color := Black
	if c >= 'A' && c <= 'Z' {
		color = White
		c = c - 'A' + 'a'
	}
	var kind Kind
	switch c {
	case 'p':
		kind = Pawn
	case 'r':
		kind = Rook
	case 'n':
		kind = Knight
	case 'b':
		kind = Bishop
	case 'q':
		kind = Queen
	case 'k':
		kind = King
	default:
		return Piece{}, false
	}
	return Piece{Kind: kind, Color: color}, true
}

// Square addresses the grid; row 0 is black's home rank, row 7 is white's.
type Square struct {
	Row int
	Col int
}

func (s Square) OnBoard() bool {
	return s.Row >= 0 && s.Row < BoardSize && s.Col >= 0 && s.Col < BoardSize
}

func (s Square) offset(dr, dc int) Square {
	return Square{Row: s.Row + dr, Col: s.Col + dc}
}

type Move struct {
	From Square
	To   Square
}

func (m Move) String() string {
	return m.From.String() + m.To.String()
}

// Board is copied by value, so any copy is an independent snapshot.
type Board [BoardSize][BoardSize]Piece

var backRank = [BoardSize]Kind{Rook, Knight, Bishop, Queen, King, Bishop, Knight, Rook}

func StartingBoard() Board {
	var b Board
	for col := 0; col < BoardSize; col++ {
		b[0][col] = Piece{Kind: backRank[col], Color: Black}
		b[1][col] = Piece{Kind: Pawn, Color: Black}
		b[6][col] = Piece{Kind: Pawn, Color: White}
		b[7][col] = Piece{Kind: backRank[col], Color: White}
	}
	return b
}

// At returns the zero Piece for off-board squares.
func (b *Board) At(sq Square) Piece {
	if !sq.OnBoard() {
		return Piece{}
	}
	return b[sq.Row][sq.Col]
}

func (b *Board) Set(sq Square, p Piece) {
	if !sq.OnBoard() {
		return
	}
	b[sq.Row][sq.Col] = p
}

// Apply moves the piece at m.From to m.To and returns whatever stood on m.To.
func (b *Board) Apply(m Move) Piece {
	captured := b.At(m.To)
	b.Set(m.To, b.At(m.From))
	b.Set(m.From, Piece{})
	return captured
}

// Squares returns every square holding a piece of the given color in row-major order.
func (b *Board) Squares(color Color) []Square {
	out := make([]Square, 0, 16)
	for row := 0; row < BoardSize; row++ {
		for col := 0; col < BoardSize; col++ {
			p := b[row][col]
			if !p.IsZero() && p.Color == color {
				out = append(out, Square{Row: row, Col: col})
			}
		}
	}
	return out
}

func (b *Board) Count(color Color) int {
	return len(b.Squares(color))
}

// Letters encodes the board as rows of piece letters, "" for empty squares.
func (b *Board) Letters() [][]string {
	rows := make([][]string, BoardSize)
	for row := 0; row < BoardSize; row++ {
		rows[row] = make([]string, BoardSize)
		for col := 0; col < BoardSize; col++ {
			rows[row][col] = b[row][col].Letter()
		}
	}
	return rows
}

func BoardFromLetters(rows [][]string) (Board, error) {
	var b Board
	if len(rows) != BoardSize {
		return b, fmt.Errorf("board must have %d rows, got %d", BoardSize, len(rows))
	}
	for row, cells := range rows {
		if len(cells) != BoardSize {
			return b, fmt.Errorf("row %d must have %d cells, got %d", row, BoardSize, len(cells))
		}
		for col, cell := range cells {
			if cell == "" {
				continue
			}
			p, ok := PieceFromLetter(cell)
			if !ok {
				return b, fmt.Errorf("invalid piece %q at row %d col %d", cell, row, col)
			}
			b[row][col] = p
		}
	}
	return b, nil
}
