package scan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smuckster/fleetcheck/pkg/checks"
	"github.com/smuckster/fleetcheck/pkg/config"
	"github.com/smuckster/fleetcheck/pkg/remediate"
	"github.com/smuckster/fleetcheck/pkg/utils"
	"github.com/smuckster/fleetcheck/pkg/utils/executortest"
)

const registry = `[defaults]
user=deploy

[web]
web1 address=10.0.0.11
web2 address=10.0.0.12

[db]
db1
`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func loadRegistry(t *testing.T) *config.HostsConfig {
	t.Helper()
	hc := config.NewHostsConfig()
	require.NoError(t, hc.Load(strings.NewReader(registry)))
	return hc
}

func hostnames(hosts []config.HostEntry) []string {
	var names []string
	for _, host := range hosts {
		names = append(names, host.Hostname)
	}
	return names
}

func TestResolveHosts(t *testing.T) {
	hc := loadRegistry(t)

	hosts, err := ResolveHosts(hc, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"web1", "web2", "db1"}, hostnames(hosts))

	hosts, err = ResolveHosts(hc, []string{"db1", "web1", "adhoc"})
	require.NoError(t, err)
	assert.Equal(t, []string{"db1", "web1", "adhoc"}, hostnames(hosts))
	assert.Equal(t, "10.0.0.11", hosts[1].Address)
	assert.Equal(t, "deploy", hosts[2].User)

	hosts, err = ResolveHosts(hc, []string{"@web"})
	require.NoError(t, err)
	assert.Equal(t, []string{"web1", "web2"}, hostnames(hosts))

	_, err = ResolveHosts(config.NewHostsConfig(), nil)
	assert.ErrorIs(t, err, ErrNoHosts)
}

// fakeFleet hands out scripted executors by host name
type fakeFleet struct {
	mu        sync.Mutex
	executors map[string]*executortest.Executor
	dialErrs  map[string]error
	dialed    []string
}

func newFakeFleet() *fakeFleet {
	return &fakeFleet{
		executors: make(map[string]*executortest.Executor),
		dialErrs:  make(map[string]error),
	}
}

func (f *fakeFleet) host(name string) *executortest.Executor {
	f.mu.Lock()
	defer f.mu.Unlock()
	if exec, ok := f.executors[name]; ok {
		return exec
	}
	exec := executortest.New(name)
	f.executors[name] = exec
	return exec
}

func (f *fakeFleet) Dial(_ context.Context, host config.HostEntry) (utils.CommandExecutor, error) {
	f.mu.Lock()
	f.dialed = append(f.dialed, host.Hostname)
	err := f.dialErrs[host.Hostname]
	f.mu.Unlock()
	if err != nil {
		return nil, &utils.ConnectionError{Host: host.Hostname, Err: err}
	}
	return f.host(host.Hostname), nil
}

func entries(names ...string) []config.HostEntry {
	var hosts []config.HostEntry
	for _, name := range names {
		hosts = append(hosts, config.HostEntry{Hostname: name})
	}
	return hosts
}

func cronKind() checks.Kind {
	return checks.NewCronCheck("cron.php", discardLogger())
}

func TestScanner_ResultsInInputOrder(t *testing.T) {
	fleet := newFakeFleet()
	kind := checks.NewCronCheck("cron.php", discardLogger())
	names := make([]string, 20)
	for i := range names {
		names[i] = fmt.Sprintf("host%02d", i)
		status := 0
		if i%3 == 0 {
			status = 1
		}
		fleet.host(names[i]).On(kind.Command(), executortest.Response{ExitStatus: status})
	}

	var progressed int
	var mu sync.Mutex
	scanner := &Scanner{
		Kind:     kind,
		Dial:     fleet.Dial,
		Parallel: 4,
		Logger:   discardLogger(),
		Progress: func(HostResult) {
			mu.Lock()
			progressed++
			mu.Unlock()
		},
	}

	results := scanner.Run(context.Background(), entries(names...))
	require.Len(t, results, len(names))
	assert.Equal(t, len(names), progressed)

	for i, result := range results {
		assert.Equal(t, names[i], result.Host)
		assert.Equal(t, "Host", result.Title)
		assert.NoError(t, result.Err)
		require.Len(t, result.Findings, 1)
		if i%3 == 0 {
			assert.Equal(t, checks.SeverityWarning, result.Findings[0].Severity)
		} else {
			assert.Equal(t, checks.SeverityOK, result.Findings[0].Severity)
		}
		assert.True(t, fleet.host(names[i]).Closed())
	}
}

func TestScanner_ConnectionErrorIsolatedToHost(t *testing.T) {
	fleet := newFakeFleet()
	fleet.dialErrs["web2"] = errors.New("dial tcp 10.0.0.12:22: i/o timeout")
	space := checks.NewDiskSpaceCheck("/", "", checks.DefaultThresholds(), discardLogger())
	dfOK := "Filesystem Size Used Avail Use% Mounted on\n/dev/xvda1 30G 10G 20G 34% /\n"
	fleet.host("web1").On(space.Command(), executortest.Response{Stdout: dfOK})
	fleet.host("web3").On(space.Command(), executortest.Response{Err: errors.New("session closed")})

	scanner := &Scanner{Kind: space, Dial: fleet.Dial, Parallel: 2, Logger: discardLogger()}
	results := scanner.Run(context.Background(), entries("web1", "web2", "web3"))

	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, checks.SeverityOK, results[0].Worst())

	require.Error(t, results[1].Err)
	assert.True(t, utils.IsConnectionError(results[1].Err))
	assert.Empty(t, results[1].Findings)

	require.Error(t, results[2].Err)
	assert.True(t, fleet.host("web3").Closed())
}

func TestScanner_CanceledContextSkipsDial(t *testing.T) {
	fleet := newFakeFleet()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	scanner := &Scanner{Kind: cronKind(), Dial: fleet.Dial, Parallel: 1, Logger: discardLogger()}
	results := scanner.Run(ctx, entries("web1", "web2"))

	require.Len(t, results, 2)
	for _, result := range results {
		assert.ErrorIs(t, result.Err, context.Canceled)
	}
	assert.Empty(t, fleet.dialed)
}

type fakeRemediator struct {
	mu        sync.Mutex
	addresses []string
	err       error
	onExpand  func(exec utils.CommandExecutor)
}

func (r *fakeRemediator) Expand(_ context.Context, exec utils.CommandExecutor, address string) (*remediate.State, error) {
	r.mu.Lock()
	r.addresses = append(r.addresses, address)
	r.mu.Unlock()
	if r.err != nil {
		return &remediate.State{Stage: remediate.StageIdentify}, r.err
	}
	if r.onExpand != nil {
		r.onExpand(exec)
	}
	return &remediate.State{VolumeID: "vol-1", CurrentSizeGB: 20, TargetSizeGB: 30, Stage: remediate.StageDone}, nil
}

func TestScanner_ExpandsFullVolumes(t *testing.T) {
	space := checks.NewDiskSpaceCheck("/", "", checks.DefaultThresholds(), discardLogger())
	fleet := newFakeFleet()
	fleet.host("full").
		On(space.Command(), executortest.Response{Stdout: "Filesystem Size Used Avail Use% Mounted on\n/dev/xvda1 20G 19G 1G 95% /\n"}).
		On(space.Command(), executortest.Response{Stdout: "Filesystem Size Used Avail Use% Mounted on\n/dev/xvda1 30G 19G 11G 64% /\n"})
	fleet.host("fine").
		On(space.Command(), executortest.Response{Stdout: "Filesystem Size Used Avail Use% Mounted on\n/dev/xvda1 30G 10G 20G 34% /\n"})

	remediator := &fakeRemediator{}
	scanner := &Scanner{
		Kind:       space,
		Flags:      checks.Flags{ExpandVolumes: true},
		Dial:       fleet.Dial,
		Remediator: remediator,
		Parallel:   2,
		Logger:     discardLogger(),
	}
	results := scanner.Run(context.Background(), entries("full", "fine"))

	assert.Equal(t, []string{"10.0.0.1"}, remediator.addresses)

	full := results[0]
	require.NoError(t, full.RemediationErr)
	require.NotNil(t, full.Remediation)
	assert.Equal(t, remediate.StageDone, full.Remediation.Stage)
	require.Len(t, full.Findings, 2)
	assert.Equal(t, checks.SeverityWarning, full.Findings[0].Severity)
	assert.Equal(t, "/ (after expansion)", full.Findings[1].Item)
	assert.Equal(t, checks.SeverityOK, full.Findings[1].Severity)

	assert.Nil(t, results[1].Remediation)
	assert.Len(t, results[1].Findings, 1)
}

func TestScanner_ExpansionRequiresFlag(t *testing.T) {
	space := checks.NewDiskSpaceCheck("/", "", checks.DefaultThresholds(), discardLogger())
	fleet := newFakeFleet()
	fleet.host("full").On(space.Command(), executortest.Response{
		Stdout: "Filesystem Size Used Avail Use% Mounted on\n/dev/xvda1 20G 20G 0 100% /\n",
	})

	remediator := &fakeRemediator{}
	scanner := &Scanner{Kind: space, Dial: fleet.Dial, Remediator: remediator, Parallel: 1, Logger: discardLogger()}
	results := scanner.Run(context.Background(), entries("full"))

	assert.Empty(t, remediator.addresses)
	assert.Nil(t, results[0].Remediation)
	assert.Equal(t, checks.SeverityCritical, results[0].Worst())
}

func TestScanner_ExpansionFailure(t *testing.T) {
	space := checks.NewDiskSpaceCheck("/", "", checks.DefaultThresholds(), discardLogger())
	fleet := newFakeFleet()
	fleet.host("full").On(space.Command(), executortest.Response{
		Stdout: "Filesystem Size Used Avail Use% Mounted on\n/dev/xvda1 20G 20G 0 100% /\n",
	})

	expandErr := &remediate.Error{Stage: remediate.StageIdentify, Err: remediate.ErrVolumeNotFound}
	scanner := &Scanner{
		Kind:       space,
		Flags:      checks.Flags{ExpandVolumes: true},
		Dial:       fleet.Dial,
		Remediator: &fakeRemediator{err: expandErr},
		Parallel:   1,
		Logger:     discardLogger(),
	}
	results := scanner.Run(context.Background(), entries("full"))

	assert.ErrorIs(t, results[0].RemediationErr, remediate.ErrVolumeNotFound)
	assert.NoError(t, results[0].Err)
	assert.Len(t, results[0].Findings, 1)
	assert.True(t, fleet.host("full").Closed())
}

func TestHostResult_Worst(t *testing.T) {
	result := HostResult{Findings: []checks.Finding{
		{Severity: checks.SeverityOK},
		{Severity: checks.SeverityInvalid},
		{Severity: checks.SeverityWarning},
	}}
	assert.Equal(t, checks.SeverityWarning, result.Worst())
	assert.Equal(t, checks.SeverityOK, HostResult{}.Worst())
}
