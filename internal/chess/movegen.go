package chess

type direction struct{ dr, dc int }

var (
	rookDirections   = []direction{{-1, 0}, {1, 0}, {0, -1}, {0, 1}}
	bishopDirections = []direction{{-1, -1}, {-1, 1}, {1, -1}, {1, 1}}
	knightJumps      = []direction{{-2, -1}, {-2, 1}, {-1, -2}, {-1, 2}, {1, -2}, {1, 2}, {2, -1}, {2, 1}}
	kingSteps        = []direction{{-1, -1}, {-1, 0}, {-1, 1}, {0, -1}, {0, 1}, {1, -1}, {1, 0}, {1, 1}}
)

// MovesFor lists the destinations reachable by the piece on sq. Castling, en passant,
// promotion and check are not modelled. Empty or off-board squares yield nil.
func MovesFor(b Board, sq Square) []Square {
	piece := b.At(sq)
	if piece.IsZero() {
		return nil
	}
	switch piece.Kind {
	case Pawn:
		return pawnMoves(&b, sq, piece.Color)
	case Rook:
		return slide(&b, sq, piece.Color, rookDirections, nil)
	case Bishop:
		return slide(&b, sq, piece.Color, bishopDirections, nil)
	case Queen:
		out := slide(&b, sq, piece.Color, rookDirections, nil)
		return slide(&b, sq, piece.Color, bishopDirections, out)
	case Knight:
		return step(&b, sq, piece.Color, knightJumps)
	case King:
		return step(&b, sq, piece.Color, kingSteps)
	}
	return nil
}

func pawnForward(c Color) int {
	if c == White {
		return -1
	}
	return 1
}

func pawnStartRow(c Color) int {
	if c == White {
		return 6
	}
	return 1
}

func pawnMoves(b *Board, sq Square, color Color) []Square {
	var out []Square
	dir := pawnForward(color)

	one := sq.offset(dir, 0)
	if one.OnBoard() && b.At(one).IsZero() {
		out = append(out, one)
		two := sq.offset(2*dir, 0)
		if sq.Row == pawnStartRow(color) && two.OnBoard() && b.At(two).IsZero() {
			out = append(out, two)
		}
	}

	for _, dc := range []int{-1, 1} {
		diag := sq.offset(dir, dc)
		if !diag.OnBoard() {
			continue
		}
		target := b.At(diag)
		if !target.IsZero() && target.Color != color {
			out = append(out, diag)
		}
	}
	return out
}

// slide walks each ray until the edge or the first occupied square, which is kept only when it holds an opponent.
func slide(b *Board, sq Square, color Color, dirs []direction, out []Square) []Square {
	for _, d := range dirs {
		cur := sq.offset(d.dr, d.dc)
		for cur.OnBoard() {
			target := b.At(cur)
			if target.IsZero() {
				out = append(out, cur)
				cur = cur.offset(d.dr, d.dc)
				continue
			}
			if target.Color != color {
				out = append(out, cur)
			}
			break
		}
	}
	return out
}

func step(b *Board, sq Square, color Color, offsets []direction) []Square {
	var out []Square
	for _, d := range offsets {
		to := sq.offset(d.dr, d.dc)
		if !to.OnBoard() {
			continue
		}
		target := b.At(to)
		if target.IsZero() || target.Color != color {
			out = append(out, to)
		}
	}
	return out
}

// LegalMoves enumerates every move for one side, origins in row-major order.
func LegalMoves(b Board, color Color) []Move {
	var moves []Move
	for _, from := range b.Squares(color) {
		for _, to := range MovesFor(b, from) {
			moves = append(moves, Move{From: from, To: to})
		}
	}
	return moves
}

func containsSquare(list []Square, sq Square) bool {
	for _, s := range list {
		if s == sq {
			return true
		}
	}
	return false
}
