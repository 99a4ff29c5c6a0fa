// pkg/remediate/driver.go

package remediate

/*
This package grows a host's data volume when it runs low on space.

Driver.Expand walks a fixed sequence of stages:
  identify -> resize-request -> await-propagation -> grow-partition -> resize-filesystem -> done

Cloud side effects go through a VolumeProvider (see pkg/cloud), host side
effects through the host's utils.CommandExecutor. Nothing is rolled back: a
failure leaves the volume at whatever stage was reached.
*/

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/smuckster/fleetcheck/pkg/config"
	"github.com/smuckster/fleetcheck/pkg/utils"
)

// Options configure an expansion
type Options struct {
	IncrementGB  int
	DiskDevice   string
	Partition    int
	Filesystem   string
	Mount        string
	PollInterval time.Duration
	PollTimeout  time.Duration
}

// OptionsFromConfig builds expansion options from the space check configuration
func OptionsFromConfig(cfg config.SpaceConfig) Options {
	return Options{
		IncrementGB:  cfg.Expand.IncrementGB,
		DiskDevice:   cfg.Expand.DiskDevice,
		Partition:    cfg.Expand.Partition,
		Filesystem:   cfg.Expand.Filesystem,
		Mount:        cfg.Mount,
		PollInterval: cfg.Expand.PollInterval,
		PollTimeout:  cfg.Expand.PollTimeout,
	}
}

// PartitionDevice returns the device node of the partition, e.g. /dev/xvda1
// or /dev/nvme0n1p1
func (o Options) PartitionDevice() string {
	device := strings.TrimRight(o.DiskDevice, "/")
	if device == "" {
		return ""
	}
	part := strconv.Itoa(o.Partition)
	if unicode.IsDigit(rune(device[len(device)-1])) {
		return device + "p" + part
	}
	return device + part
}

// GrowPartitionCommand returns the growpart invocation
func (o Options) GrowPartitionCommand() string {
	return fmt.Sprintf("growpart %s %d", utils.ShellQuote(o.DiskDevice), o.Partition)
}

// ResizeFilesystemCommand returns the filesystem grow command for the configured filesystem
func (o Options) ResizeFilesystemCommand() (string, error) {
	switch strings.ToLower(o.Filesystem) {
	case "ext2", "ext3", "ext4":
		return "resize2fs " + utils.ShellQuote(o.PartitionDevice()), nil
	case "xfs":
		return "xfs_growfs " + utils.ShellQuote(o.Mount), nil
	default:
		return "", fmt.Errorf("unsupported filesystem %q", o.Filesystem)
	}
}

// Driver runs volume expansions
type Driver struct {
	Provider VolumeProvider
	Options  Options
	logger   *slog.Logger
}

// NewDriver creates an expansion driver
func NewDriver(provider VolumeProvider, opts Options, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 5 * time.Minute
	}
	return &Driver{Provider: provider, Options: opts, logger: logger}
}

// Expand grows the volume attached to address by Options.IncrementGB and
// then grows the partition and filesystem on the host. The returned state
// holds the last stage reached, also on error.
func (d *Driver) Expand(ctx context.Context, exec utils.CommandExecutor, address string) (*State, error) {
	state := &State{Stage: StageIdentify}
	log := d.logger.With("host", exec.GetHostname(), "address", address)

	fail := func(err error) (*State, error) {
		log.Warn("volume expansion failed", "stage", state.Stage, "volume", state.VolumeID, "error", err)
		return state, &Error{Stage: state.Stage, VolumeID: state.VolumeID, Err: err}
	}

	volume, err := d.Provider.FindVolumeByAddress(ctx, address)
	if err != nil {
		return fail(err)
	}
	state.VolumeID = volume.ID
	state.CurrentSizeGB = volume.SizeGB
	state.TargetSizeGB = volume.SizeGB + d.Options.IncrementGB
	log.Debug("volume identified", "volume", volume.ID, "size_gb", volume.SizeGB)

	state.Stage = StageResizeRequest
	if err := d.Provider.ResizeVolume(ctx, volume.ID, state.TargetSizeGB); err != nil {
		return fail(err)
	}
	log.Info("volume resize requested", "volume", volume.ID, "from_gb", state.CurrentSizeGB, "to_gb", state.TargetSizeGB)

	state.Stage = StageAwaitPropagation
	if err := d.awaitResize(ctx, volume.ID); err != nil {
		return fail(err)
	}

	state.Stage = StageGrowPartition
	if err := d.growPartition(ctx, exec); err != nil {
		return fail(err)
	}

	state.Stage = StageResizeFilesystem
	if err := d.resizeFilesystem(ctx, exec); err != nil {
		return fail(err)
	}

	state.Stage = StageDone
	log.Info("volume expanded", "volume", volume.ID, "size_gb", state.TargetSizeGB)
	return state, nil
}

func (d *Driver) awaitResize(ctx context.Context, volumeID string) error {
	waitCtx, cancel := context.WithTimeout(ctx, d.Options.PollTimeout)
	defer cancel()

	ticker := time.NewTicker(d.Options.PollInterval)
	defer ticker.Stop()

	for {
		state, err := d.Provider.ResizeState(waitCtx, volumeID)
		if err != nil {
			if ctx.Err() == nil && waitCtx.Err() != nil {
				return fmt.Errorf("after %s: %w", d.Options.PollTimeout, ErrResizeTimeout)
			}
			return err
		}

		switch state {
		case ResizeReady:
			return nil
		case ResizeFailed:
			return ErrResizeFailed
		}
		d.logger.Debug("waiting for volume modification", "volume", volumeID, "state", state)

		select {
		case <-waitCtx.Done():
			if err := ctx.Err(); err != nil {
				return err
			}
			return fmt.Errorf("after %s: %w", d.Options.PollTimeout, ErrResizeTimeout)
		case <-ticker.C:
		}
	}
}

func (d *Driver) growPartition(ctx context.Context, exec utils.CommandExecutor) error {
	result, err := exec.Run(ctx, d.Options.GrowPartitionCommand(), true)
	if err != nil {
		return err
	}
	if result.Success() {
		return nil
	}
	// growpart exits 1 with NOCHANGE when the partition already fills the disk
	if result.ExitStatus == 1 && strings.Contains(result.Stdout+result.Stderr, "NOCHANGE") {
		d.logger.Debug("partition already at full size", "host", exec.GetHostname())
		return nil
	}
	return commandError("growpart", result)
}

func (d *Driver) resizeFilesystem(ctx context.Context, exec utils.CommandExecutor) error {
	command, err := d.Options.ResizeFilesystemCommand()
	if err != nil {
		return err
	}
	result, err := exec.Run(ctx, command, true)
	if err != nil {
		return err
	}
	if !result.Success() {
		return commandError(strings.Fields(command)[0], result)
	}
	return nil
}

func commandError(name string, result *utils.CommandResult) error {
	output := strings.TrimSpace(result.Stderr)
	if output == "" {
		output = strings.TrimSpace(result.Stdout)
	}
	return fmt.Errorf("%s exited with status %d: %s", name, result.ExitStatus, output)
}
