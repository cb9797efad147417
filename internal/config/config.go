// Package config loads r2's YAML startup configuration: how many
// forwarding threads to run, the shared-memory segment names for
// counters and logging, and the interfaces/routes/HFSC classes to
// configure once the control thread is up.
package config

import (
	"fmt"
	"net/netip"
	"os"

	"github.com/c2h5oh/datasize"
	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/gopakumarce/r2/internal/fwd"
	"github.com/gopakumarce/r2/internal/msg"
)

// Config is the top-level YAML document.
type Config struct {
	// Threads is the number of forwarding threads to launch.
	Threads int `yaml:"threads"`
	// CounterShm is the shared-memory segment name the counter pool is
	// created under.
	CounterShm string `yaml:"counter_shm"`
	// LogShm is the base shared-memory segment name each thread's log
	// ring is created under (thread index is appended).
	LogShm string `yaml:"log_shm"`
	// LogEntrySize is the byte size of one log ring slot.
	LogEntrySize datasize.ByteSize `yaml:"log_entry_size"`
	// LogEntries is how many slots each thread's log ring holds.
	LogEntries int `yaml:"log_entries"`

	Interfaces []Interface `yaml:"interfaces"`
	Routes     []Route     `yaml:"routes"`
	Classes    []Class     `yaml:"classes"`
}

// Interface configures one interface to bring up at startup.
type Interface struct {
	Name string `yaml:"name"`
	// Mac is a colon-separated hex address ("aa:bb:cc:dd:ee:ff").
	Mac string `yaml:"mac"`
	// Bandwidth bounds the interface's HFSC root class; zero keeps the
	// node's own default.
	Bandwidth datasize.ByteSize `yaml:"bandwidth"`
	// Addr is this interface's IPv4 address in "a.b.c.d/len" form; the
	// connected route for its subnet is installed automatically.
	Addr string `yaml:"addr"`
}

// Route configures one static route.
type Route struct {
	Prefix string `yaml:"prefix"`
	Nhop   string `yaml:"nhop"`
	Ifname string `yaml:"ifname"`
}

// Class configures one HFSC class on an interface.
type Class struct {
	Ifname string `yaml:"ifname"`
	Name   string `yaml:"name"`
	Parent string `yaml:"parent"`
	Qlimit int     `yaml:"qlimit"`
	IsLeaf bool    `yaml:"is_leaf"`
	Rsc    *Curve  `yaml:"realtime"`
	Usc    *Curve  `yaml:"upperlimit"`
	Fsc    Curve   `yaml:"linkshare"`
}

// Curve is one HFSC service curve segment: slope m1 (bits/sec) for d
// milliseconds, then slope m2.
type Curve struct {
	M1 uint64 `yaml:"m1"`
	D  uint64 `yaml:"d"`
	M2 uint64 `yaml:"m2"`
}

func (c Curve) toMsg() msg.Sc {
	return msg.Sc{M1: c.M1, D: c.D, M2: c.M2}
}

// CurvesMsg converts this class's curves into the control-plane wire shape.
func (c Class) CurvesMsg() msg.Curves {
	curves := msg.Curves{FSc: c.Fsc.toMsg()}
	if c.Rsc != nil {
		rsc := c.Rsc.toMsg()
		curves.RSc = &rsc
	}
	if c.Usc != nil {
		usc := c.Usc.toMsg()
		curves.USc = &usc
	}
	return curves
}

// Default returns the baseline configuration used when a file omits a
// field, mirroring the constants the original hardcodes in main().
func Default() *Config {
	return &Config{
		Threads:      2,
		CounterShm:   "r2cnt",
		LogShm:       "r2log",
		LogEntrySize: 32 * datasize.B,
		LogEntries:   1000,
	}
}

// Load reads and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks every field that can be checked without touching a
// live R2 context (interface existence, route resolution -- those are
// checked by control.R2 as configuration is actually applied). Every
// problem found is collected rather than stopping at the first one, so
// a single bad file reports everything wrong with it in one pass.
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.Threads < 1 {
		result = multierror.Append(result, fmt.Errorf("threads must be >= 1, got %d", c.Threads))
	}
	if c.LogEntrySize < 16 {
		result = multierror.Append(result, fmt.Errorf("log_entry_size must be >= 16 bytes, got %s", c.LogEntrySize))
	}
	if c.LogEntries < 1 {
		result = multierror.Append(result, fmt.Errorf("log_entries must be >= 1, got %d", c.LogEntries))
	}

	seen := make(map[string]bool, len(c.Interfaces))
	for _, intf := range c.Interfaces {
		if intf.Name == "" {
			result = multierror.Append(result, fmt.Errorf("interface entry missing name"))
			continue
		}
		if seen[intf.Name] {
			result = multierror.Append(result, fmt.Errorf("interface %s configured more than once", intf.Name))
		}
		seen[intf.Name] = true
		if _, ok := fwd.StrToMac(intf.Mac); !ok {
			result = multierror.Append(result, fmt.Errorf("interface %s: bad mac %q", intf.Name, intf.Mac))
		}
		if intf.Addr != "" {
			if _, _, ok := fwd.IPMaskDecode(intf.Addr); !ok {
				result = multierror.Append(result, fmt.Errorf("interface %s: bad addr %q", intf.Name, intf.Addr))
			}
		}
	}

	for _, rt := range c.Routes {
		if _, err := netip.ParsePrefix(rt.Prefix); err != nil {
			result = multierror.Append(result, fmt.Errorf("route prefix %q: %w", rt.Prefix, err))
		}
		if rt.Nhop != "" {
			if _, err := netip.ParseAddr(rt.Nhop); err != nil {
				result = multierror.Append(result, fmt.Errorf("route nhop %q: %w", rt.Nhop, err))
			}
		}
		if rt.Ifname == "" {
			result = multierror.Append(result, fmt.Errorf("route %s missing ifname", rt.Prefix))
		}
	}

	for _, cls := range c.Classes {
		if cls.Ifname == "" || cls.Name == "" {
			result = multierror.Append(result, fmt.Errorf("class entry missing ifname or name"))
		}
	}

	return result.ErrorOrNil()
}
