package run

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/majusb/majusb/pkg/errors"
	"github.com/majusb/majusb/pkg/progress"
	"github.com/superfly/fsm"
)

// Controller starts write runs asynchronously and reports each run through
// an event channel. Every started run delivers exactly one terminal done
// event, after which the channel closes.
type Controller struct {
	manager *fsm.Manager
	machine *Machine
	start   fsm.Start[WriteRequest, WriteResponse]
}

// NewController builds the FSM manager with its state directory at dbDir
// and registers the write machine on it.
func NewController(ctx context.Context, dbDir string, machine *Machine) (*Controller, error) {
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, errors.Wrapf(err, "cannot create FSM state dir %s", dbDir)
	}

	manager, err := fsm.New(fsm.Config{DBPath: dbDir})
	if err != nil {
		return nil, errors.Wrap(err, "FSM manager failed")
	}

	start, _, err := machine.Register(ctx, manager)
	if err != nil {
		manager.Shutdown(10 * time.Second)
		return nil, err
	}

	return &Controller{manager: manager, machine: machine, start: start}, nil
}

// Shutdown flushes FSM state. Call after the event channel has closed.
func (c *Controller) Shutdown() {
	c.manager.Shutdown(10 * time.Second)
}

// Start launches one run and returns its event stream immediately. The
// caller drains the channel; the done event carries the final verdict and
// is always last.
func (c *Controller) Start(ctx context.Context, req WriteRequest) (<-chan progress.Event, error) {
	sink := progress.NewChannelSink()

	resp := &WriteResponse{}
	key := fmt.Sprintf("write-%s-%d", filepath.Base(req.DevicePath), time.Now().UnixNano())
	req.RunKey = key
	c.machine.attachSink(key, sink)

	version, err := c.start(ctx, key, fsm.NewRequest(&req, resp))
	if err != nil {
		c.machine.detachSink(key)
		return nil, errors.Wrap(err, "failed to start run")
	}
	slog.Info("run_started", "key", key, "version", version)

	go func() {
		defer c.machine.detachSink(key)
		if err := c.manager.Wait(ctx, version); err != nil {
			msg := resp.ErrorMessage
			if msg == "" {
				msg = err.Error()
			}
			slog.Error("run_failed", "key", key, "error", msg)
			sink.Done(false, msg)
			return
		}
		slog.Info("run_complete", "key", key, "status", resp.Status)
		sink.Done(true, "Write completed successfully.")
	}()

	return sink.Events(), nil
}
