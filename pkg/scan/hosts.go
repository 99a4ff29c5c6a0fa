// pkg/scan/hosts.go

package scan

import (
	"errors"
	"strings"

	"github.com/smuckster/fleetcheck/pkg/config"
)

// ErrNoHosts is returned when neither the arguments nor the registry name a host
var ErrNoHosts = errors.New("no hosts to check")

// ResolveHosts returns the hosts to scan. Explicit arguments are used in the
// given order, each looked up in the registry for its connection settings;
// without arguments every registered host is scanned in file order. An
// argument of the form @group expands to the hosts of that group.
func ResolveHosts(registry *config.HostsConfig, args []string) ([]config.HostEntry, error) {
	var hosts []config.HostEntry

	if len(args) == 0 {
		hosts = append(hosts, registry.GetAllHosts()...)
	}

	for _, arg := range args {
		arg = strings.TrimSpace(arg)
		if arg == "" {
			continue
		}
		if group, ok := strings.CutPrefix(arg, "@"); ok {
			hosts = append(hosts, registry.GetHostsByGroup(group)...)
			continue
		}
		hosts = append(hosts, registry.EntryFor(arg))
	}

	if len(hosts) == 0 {
		return nil, ErrNoHosts
	}
	return hosts, nil
}
