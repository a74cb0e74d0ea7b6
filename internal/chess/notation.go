package chess

import (
	"strconv"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// NativeSquare maps a grid square onto the library square; row 0 is rank 8.
func NativeSquare(s Square) nchess.Square {
	return nchess.NewSquare(nchess.File(s.Col), nchess.Rank(BoardSize-1-s.Row))
}

func fromNative(sq nchess.Square) Square {
	return Square{Row: BoardSize - 1 - int(sq.Rank()), Col: int(sq.File())}
}

// String returns the algebraic name, e.g. "e2" for (6,4).
func (s Square) String() string {
	if !s.OnBoard() {
		return "-"
	}
	return NativeSquare(s).String()
}

func ParseSquare(name string) (Square, bool) {
	s := strings.ToLower(strings.TrimSpace(name))
	if len(s) != 2 {
		return Square{}, false
	}
	file := int(s[0]) - 'a'
	rank := int(s[1]) - '1'
	if file < 0 || file >= BoardSize || rank < 0 || rank >= BoardSize {
		return Square{}, false
	}
	return fromNative(nchess.NewSquare(nchess.File(file), nchess.Rank(rank))), true
}

func ParseMove(text string) (Move, bool) {
	s := strings.ToLower(strings.TrimSpace(text))
	if len(s) != 4 {
		return Move{}, false
	}
	from, ok := ParseSquare(s[:2])
	if !ok {
		return Move{}, false
	}
	to, ok := ParseSquare(s[2:])
	if !ok {
		return Move{}, false
	}
	return Move{From: from, To: to}, true
}

func toNativePiece(p Piece) nchess.Piece {
	if p.Color == White {
		switch p.Kind {
		case Pawn:
			return nchess.WhitePawn
		case Rook:
			return nchess.WhiteRook
		case Knight:
			return nchess.WhiteKnight
		case Bishop:
			return nchess.WhiteBishop
		case Queen:
			return nchess.WhiteQueen
		case King:
			return nchess.WhiteKing
		}
		return nchess.NoPiece
	}
	switch p.Kind {
	case Pawn:
		return nchess.BlackPawn
	case Rook:
		return nchess.BlackRook
	case Knight:
		return nchess.BlackKnight
	case Bishop:
		return nchess.BlackBishop
	case Queen:
		return nchess.BlackQueen
	case King:
		return nchess.BlackKing
	}
	return nchess.NoPiece
}

// NativeBoard converts the grid into a library board for rendering and FEN export.
func NativeBoard(b Board) *nchess.Board {
	m := make(map[nchess.Square]nchess.Piece, 32)
	for row := 0; row < BoardSize; row++ {
		for col := 0; col < BoardSize; col++ {
			p := b[row][col]
			if p.IsZero() {
				continue
			}
			m[NativeSquare(Square{Row: row, Col: col})] = toNativePiece(p)
		}
	}
	return nchess.NewBoard(m)
}

// FEN exports the position. Castling and en passant never apply here, so those fields are always "-".
func FEN(b Board, turn Color, moveCount int) string {
	side := "w"
	if turn == Black {
		side = "b"
	}
	fullmove := moveCount/2 + 1
	var sb strings.Builder
	sb.WriteString(NativeBoard(b).String())
	sb.WriteString(" ")
	sb.WriteString(side)
	sb.WriteString(" - - 0 ")
	sb.WriteString(strconv.Itoa(fullmove))
	return sb.String()
}
