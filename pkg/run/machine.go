// Package run drives the lifecycle of one write as a persistent state
// machine: classify the image, execute the matching flow, record the
// outcome. Every failure aborts the machine; a partially written device is
// never retried automatically.
package run

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/majusb/majusb/pkg/classify"
	"github.com/majusb/majusb/pkg/errors"
	"github.com/majusb/majusb/pkg/flow"
	"github.com/majusb/majusb/pkg/history"
	"github.com/majusb/majusb/pkg/progress"
	"github.com/superfly/fsm"
)

// Machine holds dependencies for FSM transitions
type Machine struct {
	classifier *classify.Classifier
	flows      map[classify.OSKind]flow.Flow
	store      *history.Store
	validator  *Validator

	// sinks maps a run key to the event sink owned by that run. Keyed
	// per run so concurrent runs never cross-wire their events.
	mu    sync.Mutex
	sinks map[string]progress.Sink
}

// NewMachine creates a new FSM machine with dependencies
func NewMachine(
	classifier *classify.Classifier,
	flows map[classify.OSKind]flow.Flow,
	store *history.Store,
	validator *Validator,
) *Machine {
	return &Machine{
		classifier: classifier,
		flows:      flows,
		store:      store,
		validator:  validator,
		sinks:      map[string]progress.Sink{},
	}
}

// attachSink routes events of the run identified by key to sink.
func (m *Machine) attachSink(key string, sink progress.Sink) {
	m.mu.Lock()
	m.sinks[key] = sink
	m.mu.Unlock()
}

// detachSink removes the run's sink once its terminal event is delivered.
func (m *Machine) detachSink(key string) {
	m.mu.Lock()
	delete(m.sinks, key)
	m.mu.Unlock()
}

// sinkFor resolves the run's sink, falling back to a discard sink for
// runs without an attached listener (e.g. resumed FSM state).
func (m *Machine) sinkFor(key string) progress.Sink {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sink, ok := m.sinks[key]; ok {
		return sink
	}
	return discardSink{}
}

// discardSink drops every event.
type discardSink struct{}

func (discardSink) Log(string)        {}
func (discardSink) Overall(int)       {}
func (discardSink) Step(int)          {}
func (discardSink) Done(bool, string) {}

// Register registers the write FSM
func (m *Machine) Register(ctx context.Context, manager *fsm.Manager) (fsm.Start[WriteRequest, WriteResponse], fsm.Resume, error) {
	start, resume, err := fsm.Register[WriteRequest, WriteResponse](manager, "usb-write").
		Start(StateClassify, m.handleClassify).
		To(StateWrite, m.handleWrite).
		To(StateComplete, m.handleComplete).
		End(StateFailed).
		Build(ctx)

	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to register FSM")
	}

	return start, resume, nil
}

// handleClassify validates the request, opens the journal entry, and
// detects the image family.
func (m *Machine) handleClassify(ctx context.Context, req *fsm.Request[WriteRequest, WriteResponse]) (*fsm.Response[WriteResponse], error) {
	slog.Info("fsm_state_classify", "image", req.Msg.ImagePath, "device", req.Msg.DevicePath)

	resp := req.W.Msg
	if resp == nil {
		resp = &WriteResponse{}
	}

	if err := m.validator.Validate(*req.Msg); err != nil {
		slog.Error("request_validation_failed", "error", err)
		resp.ErrorMessage = err.Error()
		return nil, fsm.Abort(err)
	}

	rec := &history.Run{
		ImagePath:  req.Msg.ImagePath,
		DevicePath: req.Msg.DevicePath,
		Status:     history.StatusRunning,
	}
	if err := m.store.Create(rec); err != nil {
		slog.Error("history_create_failed", "error", err)
		resp.ErrorMessage = err.Error()
		return nil, fsm.Abort(errors.Wrap(err, "failed to record run"))
	}
	resp.RunID = rec.ID

	sink := m.sinkFor(req.Msg.RunKey)
	sink.Log("Inspecting image...")
	kind, err := m.classifier.Classify(ctx, req.Msg.ImagePath)
	if err != nil {
		slog.Error("classification_failed", "image", req.Msg.ImagePath, "error", err)
		resp.ErrorMessage = err.Error()
		m.store.UpdateStatus(rec.ID, history.StatusFailed, err.Error())
		return nil, fsm.Abort(err)
	}
	resp.OSKind = string(kind)

	rec.OSKind = string(kind)
	if err := m.store.Update(rec); err != nil {
		slog.Warn("history_update_failed", "run_id", rec.ID, "error", err)
	}

	sink.Log(fmt.Sprintf("Detected %s image.", kind))
	slog.Info("image_classified", "image", req.Msg.ImagePath, "os_kind", kind)

	return fsm.NewResponse(resp), nil
}

// handleWrite runs the flow selected by classification.
func (m *Machine) handleWrite(ctx context.Context, req *fsm.Request[WriteRequest, WriteResponse]) (*fsm.Response[WriteResponse], error) {
	slog.Info("fsm_state_write", "device", req.Msg.DevicePath)

	resp := req.W.Msg
	if resp == nil {
		return nil, fsm.Abort(fmt.Errorf("response not initialized"))
	}

	fl, ok := m.flows[classify.OSKind(resp.OSKind)]
	if !ok {
		err := fmt.Errorf("no flow for image kind %q", resp.OSKind)
		resp.ErrorMessage = err.Error()
		m.store.UpdateStatus(resp.RunID, history.StatusFailed, err.Error())
		return nil, fsm.Abort(err)
	}

	sink := m.sinkFor(req.Msg.RunKey)
	sink.Log(fmt.Sprintf("Writing %s to %s...", req.Msg.ImagePath, req.Msg.DevicePath))
	slog.Info("flow_started", "flow", fl.Name(), "device", req.Msg.DevicePath)

	freq := flow.Request{
		ImagePath:   req.Msg.ImagePath,
		DevicePath:  req.Msg.DevicePath,
		SplitImage:  req.Msg.SplitImage,
		ClusterSize: req.Msg.ClusterSize,
	}
	if err := fl.Run(ctx, freq, sink); err != nil {
		slog.Error("flow_failed", "flow", fl.Name(), "error", err)
		resp.ErrorMessage = err.Error()
		m.store.UpdateStatus(resp.RunID, history.StatusFailed, err.Error())
		return nil, fsm.Abort(err)
	}

	slog.Info("flow_complete", "flow", fl.Name(), "device", req.Msg.DevicePath)
	return fsm.NewResponse(resp), nil
}

// handleComplete closes the journal entry and marks the run complete
func (m *Machine) handleComplete(ctx context.Context, req *fsm.Request[WriteRequest, WriteResponse]) (*fsm.Response[WriteResponse], error) {
	slog.Info("fsm_state_complete", "device", req.Msg.DevicePath)

	resp := req.W.Msg
	if resp == nil {
		return nil, fsm.Abort(fmt.Errorf("response not initialized"))
	}

	if err := m.store.UpdateStatus(resp.RunID, history.StatusCompleted, ""); err != nil {
		slog.Error("history_complete_failed", "run_id", resp.RunID, "error", err)
		resp.ErrorMessage = err.Error()
		return nil, fsm.Abort(errors.Wrap(err, "failed to record completion"))
	}
	resp.Status = history.StatusCompleted

	slog.Info("fsm_complete", "device", req.Msg.DevicePath, "status", resp.Status)
	return fsm.NewResponse(resp), nil
}
