package checks

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smuckster/fleetcheck/pkg/config"
	"github.com/smuckster/fleetcheck/pkg/utils"
	"github.com/smuckster/fleetcheck/pkg/utils/executortest"
)

const dfRoot = `Filesystem      Size  Used Avail Use% Mounted on
/dev/xvda1       20G   19G  1.2G  95% /
`

const dfAll = `Filesystem      Size  Used Avail Use% Mounted on
udev            983M     0  983M   0% /dev
tmpfs           199M  800K  198M   1% /run
/dev/xvda1       30G   12G   18G  40% /
/dev/xvdf       100G   20G   80G  20% /mnt/data files
`

func TestParseDiskUsage(t *testing.T) {
	fact, err := ParseDiskUsage(dfRoot, "")
	require.NoError(t, err)
	assert.Equal(t, DiskUsageFact{
		Filesystem:  "/dev/xvda1",
		Mount:       "/",
		PercentUsed: 95,
		Used:        "19G",
		Total:       "20G",
		Free:        "1.2G",
		FreeGB:      1.2,
	}, fact)
}

func TestParseDiskUsage_ByDevice(t *testing.T) {
	fact, err := ParseDiskUsage(dfAll, "xvda1")
	require.NoError(t, err)
	assert.Equal(t, "/", fact.Mount)
	assert.Equal(t, 40, fact.PercentUsed)
	assert.Equal(t, 18.0, fact.FreeGB)

	fact, err = ParseDiskUsage(dfAll, "xvdf")
	require.NoError(t, err)
	assert.Equal(t, "/mnt/data files", fact.Mount)

	_, err = ParseDiskUsage(dfAll, "nvme0n1p1")
	assert.Error(t, err)
}

func TestParseDiskUsage_Malformed(t *testing.T) {
	_, err := ParseDiskUsage("", "")
	assert.Error(t, err)

	_, err = ParseDiskUsage("Filesystem Size Used Avail Use% Mounted on\n/dev/xvda1 20G 19G 1G n/a /\n", "")
	assert.Error(t, err)
}

func TestParseSizeGB(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"5G", 5},
		{"1.5T", 1536},
		{"512M", 0.5},
		{"1048576K", 1},
		{"0", 0},
	}
	for _, tt := range tests {
		got, err := ParseSizeGB(tt.in)
		require.NoError(t, err, tt.in)
		assert.InDelta(t, tt.want, got, 1e-9, tt.in)
	}

	_, err := ParseSizeGB("lots")
	assert.Error(t, err)
}

func TestDiskSpaceCheck_Inspect(t *testing.T) {
	check := NewDiskSpaceCheck("/", "", DefaultThresholds(), discardLogger())
	exec := executortest.New("web1").On(check.Command(), executortest.Response{Stdout: dfRoot})

	findings, err := check.Inspect(context.Background(), exec)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "/", findings[0].Item)
	assert.Equal(t, SeverityWarning, findings[0].Severity)
	assert.Equal(t, "19G/20G used, 1.2G left (95%) Space may run out soon.", findings[0].Message)
	assert.True(t, check.NeedsExpansion(findings))

	calls := exec.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "df -h -P '/'", calls[0].Command)
	assert.True(t, calls[0].Privileged)
}

func TestDiskSpaceCheck_OutOfSpace(t *testing.T) {
	check := NewDiskSpaceCheck("/", "", DefaultThresholds(), discardLogger())
	exec := executortest.New("web1").On(check.Command(), executortest.Response{
		Stdout: "Filesystem Size Used Avail Use% Mounted on\n/dev/xvda1 20G 20G 0 100% /\n",
	})

	findings, err := check.Inspect(context.Background(), exec)
	require.NoError(t, err)
	assert.Equal(t, SeverityCritical, findings[0].Severity)
	assert.Equal(t, "20G/20G used, 0 left (100%) Out of space!", findings[0].Message)
}

func TestDiskSpaceCheck_UnreadableOutputIsInvalid(t *testing.T) {
	check := NewDiskSpaceCheck("/data", "", DefaultThresholds(), discardLogger())
	exec := executortest.New("web1").On(check.Command(), executortest.Response{
		ExitStatus: 1, Stderr: "df: /data: No such file or directory",
	})

	findings, err := check.Inspect(context.Background(), exec)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, SeverityInvalid, findings[0].Severity)
	assert.Equal(t, "/data", findings[0].Item)
	assert.Contains(t, findings[0].Message, "No such file or directory")
	assert.False(t, check.NeedsExpansion(findings))
}

func TestDiskSpaceCheck_ConnectionError(t *testing.T) {
	check := NewDiskSpaceCheck("/", "", DefaultThresholds(), discardLogger())
	exec := executortest.New("web1").On(check.Command(), executortest.Response{Err: errors.New("EOF")})

	_, err := check.Inspect(context.Background(), exec)
	require.Error(t, err)
	assert.True(t, utils.IsConnectionError(err))
}

func TestNewKind(t *testing.T) {
	for _, name := range KindNames() {
		kind, err := NewKind(name, config.DefaultCheckConfig(), nil)
		require.NoError(t, err)
		assert.Equal(t, name, kind.Name())
	}

	_, err := NewKind("memory", config.DefaultCheckConfig(), nil)
	assert.Error(t, err)

	kind, _ := NewKind("space", config.DefaultCheckConfig(), nil)
	_, ok := kind.(Expandable)
	assert.True(t, ok)
}
