package chess

const (
	HumanColor    = White
	OpponentColor = Black
)

type Phase uint8

const (
	PhaseIdle Phase = iota
	PhasePieceSelected
	PhaseFinished
)

func (p Phase) String() string {
	switch p {
	case PhasePieceSelected:
		return "piece_selected"
	case PhaseFinished:
		return "finished"
	default:
		return "idle"
	}
}

type Outcome string

const (
	OutcomeNone      Outcome = ""
	OutcomeHumanWins Outcome = "human_wins"
)

const ReasonNoLegalMoves = "no legal moves"

// GameState is everything the presentation layer needs to draw a frame.
type GameState struct {
	Board      Board
	Turn       Color
	Selected   *Square
	Legal      []Square
	LastMove   *Move
	Moves      []Move
	Captured   []Piece
	Outcome    Outcome
	Reason     string
	Generation uint64
}

func NewGameState() GameState {
	return GameState{Board: StartingBoard(), Turn: White}
}

func (s GameState) Phase() Phase {
	if s.Outcome != OutcomeNone {
		return PhaseFinished
	}
	if s.Selected != nil {
		return PhasePieceSelected
	}
	return PhaseIdle
}

func (s GameState) MoveCount() int { return len(s.Moves) }

func (s GameState) Clone() GameState {
	out := s
	if s.Selected != nil {
		sel := *s.Selected
		out.Selected = &sel
	}
	if s.LastMove != nil {
		lm := *s.LastMove
		out.LastMove = &lm
	}
	out.Legal = append([]Square(nil), s.Legal...)
	out.Moves = append([]Move(nil), s.Moves...)
	out.Captured = append([]Piece(nil), s.Captured...)
	return out
}

type MoveResult struct {
	Applied    bool
	Move       Move
	Captured   Piece
	Reselected bool
}

type OpponentResult struct {
	Applied  bool
	Move     ScoredMove
	Finished bool
}

// Controller owns one game. It is not safe for concurrent use; callers serialize access.
type Controller struct {
	state GameState
	eval  *Evaluator
}

func NewController(eval *Evaluator) *Controller {
	if eval == nil {
		eval = NewEvaluator(nil)
	}
	return &Controller{state: NewGameState(), eval: eval}
}

// NewControllerFrom starts from an arbitrary position.
func NewControllerFrom(b Board, turn Color, eval *Evaluator) *Controller {
	c := NewController(eval)
	c.state.Board = b
	c.state.Turn = turn
	return c
}

func (c *Controller) State() GameState { return c.state.Clone() }

func (c *Controller) Generation() uint64 { return c.state.Generation }

func (c *Controller) Turn() Color { return c.state.Turn }

func (c *Controller) Finished() bool { return c.state.Outcome != OutcomeNone }

// Reset starts a fresh game. The generation keeps counting so pending work from the old game goes stale.
func (c *Controller) Reset() {
	gen := c.state.Generation + 1
	c.state = NewGameState()
	c.state.Generation = gen
}

// Restore replaces the state with a persisted snapshot and bumps the generation past it.
func (c *Controller) Restore(s GameState) {
	gen := c.state.Generation
	if s.Generation > gen {
		gen = s.Generation
	}
	c.state = s.Clone()
	c.state.Generation = gen + 1
}

// SelectPiece only accepts a white piece on white's turn. Anything else is ignored.
func (c *Controller) SelectPiece(row, col int) bool {
	sq := Square{Row: row, Col: col}
	if c.Finished() || c.state.Turn != HumanColor || !sq.OnBoard() {
		return false
	}
	p := c.state.Board.At(sq)
	if p.IsZero() || p.Color != HumanColor {
		return false
	}
	c.state.Selected = &sq
	c.state.Legal = MovesFor(c.state.Board, sq)
	return true
}

func (c *Controller) ClearSelection() {
	c.state.Selected = nil
	c.state.Legal = nil
}

// AttemptMove moves the selected piece onto a legal destination. An own piece on the target
// becomes the new selection; any other target clears the selection.
func (c *Controller) AttemptMove(row, col int) MoveResult {
	if c.state.Selected == nil || c.Finished() || c.state.Turn != HumanColor {
		return MoveResult{}
	}
	to := Square{Row: row, Col: col}
	if containsSquare(c.state.Legal, to) {
		m := Move{From: *c.state.Selected, To: to}
		captured := c.apply(m)
		return MoveResult{Applied: true, Move: m, Captured: captured}
	}
	if p := c.state.Board.At(to); !p.IsZero() && p.Color == HumanColor && to != *c.state.Selected {
		c.SelectPiece(row, col)
		return MoveResult{Reselected: true}
	}
	c.ClearSelection()
	return MoveResult{}
}

// Click routes a square click the way the board UI does: select when idle, otherwise try to move.
func (c *Controller) Click(row, col int) MoveResult {
	if c.state.Selected == nil {
		c.SelectPiece(row, col)
		return MoveResult{}
	}
	return c.AttemptMove(row, col)
}

// TriggerOpponentTurn plays the best scored black move. With no black moves the human wins,
// the board is left untouched and further triggers are ignored.
func (c *Controller) TriggerOpponentTurn() OpponentResult {
	if c.Finished() || c.state.Turn != OpponentColor {
		return OpponentResult{}
	}
	moves := LegalMoves(c.state.Board, OpponentColor)
	best, ok := c.eval.Best(c.state.Board, moves)
	if !ok {
		c.state.Outcome = OutcomeHumanWins
		c.state.Reason = ReasonNoLegalMoves
		c.ClearSelection()
		c.state.Generation++
		return OpponentResult{Finished: true}
	}
	c.apply(best.Move)
	return OpponentResult{Applied: true, Move: best}
}

func (c *Controller) apply(m Move) Piece {
	captured := c.state.Board.Apply(m)
	if !captured.IsZero() {
		c.state.Captured = append(c.state.Captured, captured)
	}
	c.state.Moves = append(c.state.Moves, m)
	last := m
	c.state.LastMove = &last
	c.ClearSelection()
	c.state.Turn = c.state.Turn.Opponent()
	c.state.Generation++
	return captured
}
