package chess

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSquareNames(t *testing.T) {
	cases := map[Square]string{
		sq(6, 4): "e2",
		sq(4, 4): "e4",
		sq(0, 0): "a8",
		sq(7, 7): "h1",
	}
	for s, want := range cases {
		if got := s.String(); got != want {
			t.Fatalf("%+v.String() = %q, want %q", s, got, want)
		}
		back, ok := ParseSquare(want)
		if !ok || back != s {
			t.Fatalf("ParseSquare(%q) = %+v, %v", want, back, ok)
		}
	}
	if _, ok := ParseSquare("i9"); ok {
		t.Fatalf("i9 should not parse")
	}
}

func TestParseMove(t *testing.T) {
	m, ok := ParseMove("e2e4")
	if !ok || m != (Move{From: sq(6, 4), To: sq(4, 4)}) {
		t.Fatalf("ParseMove(e2e4) = %+v, %v", m, ok)
	}
	if m.String() != "e2e4" {
		t.Fatalf("Move.String() = %q", m.String())
	}
	if _, ok := ParseMove("e2"); ok {
		t.Fatalf("short move should not parse")
	}
}

func TestStartingFEN(t *testing.T) {
	got := FEN(StartingBoard(), White, 0)
	want := "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w - - 0 1"
	if got != want {
		t.Fatalf("FEN = %q, want %q", got, want)
	}
	if !strings.Contains(FEN(StartingBoard(), Black, 1), " b - - 0 1") {
		t.Fatalf("black to move should be encoded")
	}
}

func TestLettersRoundTrip(t *testing.T) {
	b := StartingBoard()
	rows := b.Letters()
	if rows[7][4] != "K" || rows[0][3] != "q" || rows[4][4] != "" {
		t.Fatalf("unexpected letters: %v", rows)
	}
	back, err := BoardFromLetters(rows)
	if err != nil {
		t.Fatalf("BoardFromLetters: %v", err)
	}
	if diff := cmp.Diff(b, back); diff != "" {
		t.Fatalf("letters round trip (-want +got):\n%s", diff)
	}
	if _, err := BoardFromLetters(rows[:3]); err == nil {
		t.Fatalf("short board should fail")
	}
}
