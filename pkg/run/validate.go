package run

import (
	"fmt"
	"os"
)

// Validator checks a write request before any destructive step runs.
type Validator struct {
	// SkipDeviceCheck accepts targets that are not block devices. Set for
	// dry runs, where the target may be a plain file.
	SkipDeviceCheck bool
}

func NewValidator() *Validator {
	return &Validator{}
}

// Validate rejects requests whose image is not a readable regular file or
// whose target is not a block device.
func (v *Validator) Validate(req WriteRequest) error {
	fi, err := os.Stat(req.ImagePath)
	if err != nil {
		return fmt.Errorf("image %s: %w", req.ImagePath, err)
	}
	if !fi.Mode().IsRegular() {
		return fmt.Errorf("image %s is not a regular file", req.ImagePath)
	}
	f, err := os.Open(req.ImagePath)
	if err != nil {
		return fmt.Errorf("image %s is not readable: %w", req.ImagePath, err)
	}
	f.Close()

	if v.SkipDeviceCheck {
		return nil
	}
	di, err := os.Stat(req.DevicePath)
	if err != nil {
		return fmt.Errorf("device %s: %w", req.DevicePath, err)
	}
	mode := di.Mode()
	if mode&os.ModeDevice == 0 || mode&os.ModeCharDevice != 0 {
		return fmt.Errorf("device %s is not a block device", req.DevicePath)
	}
	return nil
}
