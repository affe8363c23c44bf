// Package devices enumerates removable disks a write can target. It wraps
// lsblk's JSON output and filters out everything that is not a whole
// removable or USB-attached disk.
package devices

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/majusb/majusb/pkg/command"
	"github.com/majusb/majusb/pkg/errors"
)

// Device is one candidate target disk.
type Device struct {
	Path      string
	Name      string
	Size      string
	Model     string
	Transport string
	Removable bool
}

// String renders the device the way the picker shows it.
func (d Device) String() string {
	model := d.Model
	if model == "" {
		model = "unknown model"
	}
	return fmt.Sprintf("%s  %s  %s (%s)", d.Path, d.Size, model, d.Transport)
}

// lsblkDevice mirrors one entry of lsblk --json output.
type lsblkDevice struct {
	Name      string `json:"name"`
	Removable bool   `json:"rm"`
	Size      string `json:"size"`
	Model     string `json:"model"`
	Transport string `json:"tran"`
	Type      string `json:"type"`
}

type lsblkOutput struct {
	BlockDevices []lsblkDevice `json:"blockdevices"`
}

// Lister enumerates candidate disks.
type Lister struct {
	runner command.Runner
}

func NewLister(runner command.Runner) *Lister {
	return &Lister{runner: runner}
}

// List returns whole disks that are removable or attached over USB. Fixed
// internal disks never appear in the result.
func (l *Lister) List(ctx context.Context) ([]Device, error) {
	out, err := l.runner.Output(ctx, "lsblk", "--json", "-o", "NAME,RM,SIZE,MODEL,TRAN,TYPE")
	if err != nil {
		return nil, err
	}

	var parsed lsblkOutput
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		return nil, errors.Wrap(err, "cannot parse lsblk output")
	}

	var devices []Device
	for _, d := range parsed.BlockDevices {
		if d.Type != "disk" {
			continue
		}
		if !d.Removable && d.Transport != "usb" {
			continue
		}
		devices = append(devices, Device{
			Path:      "/dev/" + d.Name,
			Name:      d.Name,
			Size:      d.Size,
			Model:     strings.TrimSpace(d.Model),
			Transport: d.Transport,
			Removable: d.Removable,
		})
	}

	slog.Info("devices_listed", "candidate_count", len(devices))
	return devices, nil
}
