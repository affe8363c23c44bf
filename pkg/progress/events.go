package progress

import "sync"

// Event types emitted during a run.
const (
	EventLog     = "log"
	EventOverall = "overall"
	EventStep    = "step"
	EventDone    = "done"
)

// Event is one update from a run. Exactly one EventDone is emitted per run
// and it is always the final event.
type Event struct {
	Type    string
	Message string
	Percent int
	Success bool
}

// Sink receives run events. Implementations must preserve emission order;
// later UI state depends on earlier log context.
type Sink interface {
	Log(msg string)
	Overall(pct int)
	Step(pct int)
	Done(ok bool, msg string)
}

// ChannelSink forwards events over a buffered channel to the caller that
// owns the run. Done closes the channel after delivering the terminal
// event.
type ChannelSink struct {
	ch chan Event
}

func NewChannelSink() *ChannelSink {
	return &ChannelSink{ch: make(chan Event, 256)}
}

// Events is the receive side consumed by the caller.
func (s *ChannelSink) Events() <-chan Event { return s.ch }

func (s *ChannelSink) Log(msg string)  { s.ch <- Event{Type: EventLog, Message: msg} }
func (s *ChannelSink) Overall(pct int) { s.ch <- Event{Type: EventOverall, Percent: pct} }
func (s *ChannelSink) Step(pct int)    { s.ch <- Event{Type: EventStep, Percent: pct} }

func (s *ChannelSink) Done(ok bool, msg string) {
	s.ch <- Event{Type: EventDone, Success: ok, Message: msg}
	close(s.ch)
}

// Recorder captures events in memory. Used by tests to assert ordering and
// watermark sequences.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) append(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *Recorder) Log(msg string)  { r.append(Event{Type: EventLog, Message: msg}) }
func (r *Recorder) Overall(pct int) { r.append(Event{Type: EventOverall, Percent: pct}) }
func (r *Recorder) Step(pct int)    { r.append(Event{Type: EventStep, Percent: pct}) }
func (r *Recorder) Done(ok bool, msg string) {
	r.append(Event{Type: EventDone, Success: ok, Message: msg})
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Overalls returns the overall percentages in emission order.
func (r *Recorder) Overalls() []int {
	var out []int
	for _, e := range r.Events() {
		if e.Type == EventOverall {
			out = append(out, e.Percent)
		}
	}
	return out
}

// Steps returns the step percentages in emission order.
func (r *Recorder) Steps() []int {
	var out []int
	for _, e := range r.Events() {
		if e.Type == EventStep {
			out = append(out, e.Percent)
		}
	}
	return out
}
