package chesspresenter

import (
	svc "github.com/park285/baahaus/internal/service/chess"
	"github.com/park285/baahaus/pkg/chessdto"
)

// Presenter delivers board frames to one client without coupling to the transport.
type Presenter struct {
	formatter *Formatter
	sendEvent func(ev *chessdto.Event) error
}

func NewPresenter(formatter *Formatter, sendEvent func(ev *chessdto.Event) error) *Presenter {
	return &Presenter{
		formatter: formatter,
		sendEvent: sendEvent,
	}
}

// Snapshot sends the current state as a plain state event.
func (p *Presenter) Snapshot(state *svc.SessionState) error {
	if p == nil || p.sendEvent == nil || state == nil {
		return nil
	}
	return p.sendEvent(&chessdto.Event{Type: chessdto.EventState, State: ToDTOState(state, p.formatter)})
}

func (p *Presenter) Event(ev svc.Event) error {
	if p == nil || p.sendEvent == nil || ev.State == nil {
		return nil
	}
	return p.sendEvent(ToDTOEvent(ev, p.formatter))
}
