// pkg/remediate/volume.go

package remediate

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrVolumeNotFound is returned by a VolumeProvider that has no volume for an address
	ErrVolumeNotFound = errors.New("no volume attached to host")

	// ErrResizeFailed means the provider reported the modification as failed
	ErrResizeFailed = errors.New("volume modification failed")

	// ErrResizeTimeout means the modification did not take effect within the poll timeout
	ErrResizeTimeout = errors.New("volume modification did not complete in time")
)

// Volume is the block device backing a host's data filesystem
type Volume struct {
	ID     string
	SizeGB int
}

// ResizeState is the progress of a volume modification
type ResizeState string

const (
	ResizePending ResizeState = "pending"
	ResizeReady   ResizeState = "ready"
	ResizeFailed  ResizeState = "failed"
)

// VolumeProvider is the cloud inventory and resize API
type VolumeProvider interface {
	FindVolumeByAddress(ctx context.Context, address string) (Volume, error)
	ResizeVolume(ctx context.Context, volumeID string, newSizeGB int) error
	ResizeState(ctx context.Context, volumeID string) (ResizeState, error)
}

// Stage is one step of the expansion workflow
type Stage string

const (
	StageIdentify         Stage = "identify"
	StageResizeRequest    Stage = "resize-request"
	StageAwaitPropagation Stage = "await-propagation"
	StageGrowPartition    Stage = "grow-partition"
	StageResizeFilesystem Stage = "resize-filesystem"
	StageDone             Stage = "done"
)

// State tracks one expansion. Stage only moves forward.
type State struct {
	VolumeID      string
	CurrentSizeGB int
	TargetSizeGB  int
	Stage         Stage
}

// Error is a failed expansion, tagged with the stage that failed
type Error struct {
	Stage    Stage
	VolumeID string
	Err      error
}

func (e *Error) Error() string {
	if e.VolumeID == "" {
		return fmt.Sprintf("volume expansion failed at %s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("expansion of %s failed at %s: %v", e.VolumeID, e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
