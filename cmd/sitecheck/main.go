package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/park285/baahaus/internal/msgcat"
	"github.com/park285/baahaus/internal/siteclient"
	"github.com/park285/baahaus/pkg/chessdto"
)

func main() {
	baseURL := strings.TrimSpace(os.Getenv("SITE_URL"))
	if baseURL == "" {
		baseURL = "http://localhost:3001"
	}
	player := strings.TrimSpace(os.Getenv("SITECHECK_PLAYER"))
	if player == "" {
		player = "sitecheck"
	}

	catalog, err := msgcat.New(strings.TrimSpace(os.Getenv("MESSAGES_DIR")))
	if err != nil {
		log.Fatalf("messages error: %v", err)
	}

	client := siteclient.NewClient(baseURL, siteclient.WithTimeout(8*time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	health, err := client.Health(ctx)
	if err != nil {
		log.Fatalf("/healthz error: %v", err)
	}
	fmt.Println(catalog.RenderOr("probe.ok", map[string]any{"Sessions": health.Sessions}, fmt.Sprintf("site ok: %d live sessions", health.Sessions)))

	st, err := client.StartGame(ctx, player)
	if err != nil {
		log.Fatalf("start game error: %v", err)
	}
	defer func() { _ = client.CloseGame(context.Background(), st.SessionID) }()
	log.Printf("session %s started", st.SessionID)

	replies := make(chan *chessdto.Event, 1)
	events := siteclient.NewEvents(client.EventsURL(st.SessionID), 3, nil)
	events.OnStateChange(func(state siteclient.StreamState) {
		log.Printf("event stream: %s", state)
	})
	events.OnEvent(func(ev *chessdto.Event) {
		if ev.Type == chessdto.EventOpponent || ev.Type == chessdto.EventFinished {
			select {
			case replies <- ev:
			default:
			}
		}
	})
	if err := events.Connect(ctx); err != nil {
		log.Fatalf("event stream connect error: %v", err)
	}
	defer func() { _ = events.Close(context.Background()) }()

	for _, sq := range []string{"e2", "e4"} {
		if st, err = client.Click(ctx, st.SessionID, sq); err != nil {
			log.Fatalf("click %s error: %v", sq, err)
		}
	}
	printBoard(st)

	select {
	case ev := <-replies:
		if ev.Opponent != nil {
			fmt.Printf("opponent played %s\n", ev.Opponent.UCI)
		}
		printBoard(ev.State)
	case <-ctx.Done():
		log.Fatalf("no opponent reply: %v", ctx.Err())
	}
}

var (
	lightSquare = color.New(color.BgHiWhite, color.FgBlack)
	darkSquare  = color.New(color.BgHiBlack, color.FgHiWhite)
	lastSquare  = color.New(color.BgBlue, color.FgHiWhite)
)

func printBoard(st *chessdto.BoardState) {
	if st == nil {
		return
	}
	last := map[[2]int]bool{}
	if st.LastMove != nil {
		last[[2]int{st.LastMove.From.Row, st.LastMove.From.Col}] = true
		last[[2]int{st.LastMove.To.Row, st.LastMove.To.Col}] = true
	}
	for r, row := range st.Board {
		fmt.Printf("%d ", 8-r)
		for c, cell := range row {
			text := " . "
			if cell != "" {
				text = " " + cell + " "
			}
			paint := lightSquare
			switch {
			case last[[2]int{r, c}]:
				paint = lastSquare
			case (r+c)%2 == 1:
				paint = darkSquare
			}
			fmt.Print(paint.Sprint(text))
		}
		fmt.Println()
	}
	fmt.Println("   a  b  c  d  e  f  g  h")
	fmt.Println(st.Message)
}
