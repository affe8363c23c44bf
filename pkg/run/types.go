package run

// WriteRequest is the FSM input
type WriteRequest struct {
	// RunKey identifies the run; the controller uses it to route events
	// to the sink owned by that run.
	RunKey string

	ImagePath   string
	DevicePath  string
	SplitImage  bool
	ClusterSize string
}

// WriteResponse is the FSM output (accumulated across transitions)
type WriteResponse struct {
	// From Classify
	RunID  int64
	OSKind string

	// From Write/Complete
	Status       string
	ErrorMessage string
}

// State names
const (
	StateClassify = "classify"
	StateWrite    = "write"
	StateComplete = "complete"
	StateFailed   = "failed"
)
