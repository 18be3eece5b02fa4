package cl

import (
	"fmt"

	"github.com/panicz/clops/errors"
	"github.com/panicz/clops/native"
)

// Event tracks one enqueued command.
type Event struct {
	object
	s  *Session
	id native.EventID
}

func (s *Session) newEvent(id native.EventID) *Event {
	api := s.api
	ev := &Event{s: s, id: id}
	own(ev, &ev.object, KindEvent, releaser{
		op:  "clReleaseEvent",
		fn:  func() error { return api.ReleaseEvent(id) },
		log: s.log,
	})
	return ev
}

// ID returns the native handle.
func (e *Event) ID() native.EventID { return e.id }

// Status queries the execution state of the command.
func (e *Event) Status() (native.ExecStatus, error) {
	if err := e.live(errors.PhaseEnqueue); err != nil {
		return 0, err
	}
	st, err := e.s.api.EventStatus(e.id)
	if err != nil {
		return 0, e.s.fail("event status query failed", err)
	}
	return st, nil
}

func (e *Event) String() string {
	if e.Released() {
		return "#<OpenCL event (released)>"
	}
	status := unknownInfo
	if st, err := e.s.api.EventStatus(e.id); err == nil {
		status = st.String()
	}
	return fmt.Sprintf("#<OpenCL event %x %s>", uintptr(e.id), status)
}
