package config

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfigValidates(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestParseValidConfig(t *testing.T) {
	raw := `
threads: 4
counter_shm: r2cnt
log_shm: r2log
log_entry_size: 64B
log_entries: 500
interfaces:
  - name: eth0
    mac: "aa:bb:cc:dd:ee:ff"
    bandwidth: 1GB
    addr: 10.0.0.1/24
routes:
  - prefix: 172.16.0.0/16
    nhop: 10.0.0.254
    ifname: eth0
classes:
  - ifname: eth0
    name: voice
    parent: root
    qlimit: 64
    is_leaf: true
    linkshare:
      m1: 1000
      d: 0
      m2: 1000
`
	cfg := Default()
	require.NoError(t, yaml.Unmarshal([]byte(raw), cfg))
	require.NoError(t, cfg.Validate())

	require.Equal(t, 4, cfg.Threads)
	require.Len(t, cfg.Interfaces, 1)
	require.Equal(t, "eth0", cfg.Interfaces[0].Name)
	require.Len(t, cfg.Routes, 1)
	require.Len(t, cfg.Classes, 1)

	curves := cfg.Classes[0].CurvesMsg()
	require.Equal(t, uint64(1000), curves.FSc.M1)
	require.Nil(t, curves.RSc)
}

func TestValidateCatchesMultipleErrors(t *testing.T) {
	cfg := &Config{
		Threads:      0,
		LogEntrySize: 4,
		LogEntries:   0,
		Interfaces: []Interface{
			{Name: "eth0", Mac: "not-a-mac"},
			{Name: "eth0", Mac: "aa:bb:cc:dd:ee:ff"},
		},
		Routes: []Route{
			{Prefix: "not-a-prefix", Ifname: "eth0"},
		},
	}
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "threads must be")
	require.Contains(t, err.Error(), "bad mac")
	require.Contains(t, err.Error(), "configured more than once")
	require.Contains(t, err.Error(), "route prefix")
}
