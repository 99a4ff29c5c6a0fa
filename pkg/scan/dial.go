// pkg/scan/dial.go

package scan

import (
	"context"
	"log/slog"
	"time"

	"github.com/smuckster/fleetcheck/pkg/config"
	"github.com/smuckster/fleetcheck/pkg/utils"
)

// DialFunc opens a command executor for a host
type DialFunc func(ctx context.Context, host config.HostEntry) (utils.CommandExecutor, error)

// NewDialer returns a DialFunc that connects over SSH, or runs locally for
// hosts with connection=local
func NewDialer(defaults config.DefaultConfig, logger *slog.Logger) DialFunc {
	timeout := time.Duration(defaults.SSHTimeout) * time.Second

	return func(ctx context.Context, host config.HostEntry) (utils.CommandExecutor, error) {
		become := utils.BecomeConfig{
			Always:   host.Become,
			Method:   host.BecomeMethod,
			User:     host.BecomeUser,
			Password: host.BecomePass,
			Flags:    host.BecomeFlags,
		}

		if host.Connection == "local" {
			logger.Debug("using local executor", "host", host.Hostname)
			return utils.NewLocalExecutor(host.Hostname, become), nil
		}

		address := host.Address
		if address == "" {
			address = host.Hostname
		}

		exec, err := utils.NewRemoteExecutor(ctx, &utils.SSHConfig{
			Alias:          host.Hostname,
			Host:           address,
			Port:           host.Port,
			User:           host.User,
			Password:       host.Password,
			KeyFile:        host.SSHKeyFile,
			KnownHostsFile: defaults.KnownHostsFile,
			Timeout:        timeout,
			Logger:         logger,
		}, become)
		if err != nil {
			return nil, err
		}
		logger.Debug("connected", "host", host.Hostname, "address", exec.Address())
		return exec, nil
	}
}
