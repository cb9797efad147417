// Command r2 is the forwarding daemon: it loads a YAML configuration,
// launches the control thread and its forwarding threads, applies the
// configured interfaces/routes/HFSC classes, then blocks relaying
// fwd2ctrl traffic (learned ARP entries) back out to every thread until
// interrupted.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gopakumarce/r2/internal/config"
	"github.com/gopakumarce/r2/internal/control"
	"github.com/gopakumarce/r2/internal/fwd"
)

var cmd struct {
	ConfigPath string
	LogDir     string
}

var rootCmd = &cobra.Command{
	Use:   "r2",
	Short: "r2 user-space forwarding daemon",
	Run: func(_ *cobra.Command, _ []string) {
		if err := run(cmd.ConfigPath, cmd.LogDir); err != nil {
			if errors.Is(err, Interrupted{}) {
				return
			}
			fmt.Printf("ERROR: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.Flags().StringVarP(&cmd.ConfigPath, "config", "c", "", "Path to the configuration file (required)")
	rootCmd.MarkFlagRequired("config")
	rootCmd.Flags().StringVarP(&cmd.LogDir, "log-dir", "l", "/var/log/r2", "Directory SIGUSR1 dumps each thread's log ring into")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Printf("ERROR: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, logDir string) error {
	zcfg := zap.NewDevelopmentConfig()
	zcfg.Development = false
	zcfg.Level.SetLevel(zap.DebugLevel)

	logger, err := zcfg.Build()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()
	log := logger.Sugar()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	r2, err := control.New(cfg.CounterShm, cfg.LogShm, int(cfg.LogEntrySize), cfg.LogEntries, cfg.Threads,
		control.WithLog(log))
	if err != nil {
		return fmt.Errorf("failed to initialize control plane: %w", err)
	}
	defer r2.Close()

	if err := r2.Launch(); err != nil {
		return fmt.Errorf("failed to launch forwarding threads: %w", err)
	}

	if err := applyConfig(r2, cfg); err != nil {
		return fmt.Errorf("failed to apply config: %w", err)
	}

	ctx := context.Background()
	wg, ctx := errgroup.WithContext(ctx)
	wg.Go(func() error {
		return r2.Run(ctx)
	})
	wg.Go(func() error {
		err := WaitInterrupted(ctx, func() {
			if dumpErr := r2.DumpLogs(logDir); dumpErr != nil {
				log.Warnw("dumping logs failed", "err", dumpErr)
			}
		})
		log.Infof("caught signal: %v", err)
		return err
	})

	return wg.Wait()
}

func applyConfig(r2 *control.R2, cfg *config.Config) error {
	for _, intf := range cfg.Interfaces {
		mac, ok := fwd.StrToMac(intf.Mac)
		if !ok {
			return fmt.Errorf("interface %s: bad mac %q", intf.Name, intf.Mac)
		}
		bandwidthBps := uint64(intf.Bandwidth.Bytes()) * 8
		if err := r2.AddInterface(intf.Name, mac, bandwidthBps); err != nil {
			return fmt.Errorf("interface %s: %w", intf.Name, err)
		}
		if intf.Addr != "" {
			addr, maskLen, ok := fwd.IPMaskDecode(intf.Addr)
			if !ok {
				return fmt.Errorf("interface %s: bad addr %q", intf.Name, intf.Addr)
			}
			if err := r2.AddIPAddr(intf.Name, addr, maskLen); err != nil {
				return fmt.Errorf("interface %s: %w", intf.Name, err)
			}
		}
	}

	for _, rt := range cfg.Routes {
		prefix, err := netip.ParsePrefix(rt.Prefix)
		if err != nil {
			return fmt.Errorf("route %s: %w", rt.Prefix, err)
		}
		ifindex, ok := r2.InterfaceIfindex(rt.Ifname)
		if !ok {
			return fmt.Errorf("route %s: unknown interface %s", rt.Prefix, rt.Ifname)
		}
		nhop := netip.IPv4Unspecified()
		if rt.Nhop != "" {
			nhop, err = netip.ParseAddr(rt.Nhop)
			if err != nil {
				return fmt.Errorf("route %s: bad nhop %q: %w", rt.Prefix, rt.Nhop, err)
			}
		}
		if err := r2.AddRoute(prefix, nhop, ifindex); err != nil {
			return fmt.Errorf("route %s: %w", rt.Prefix, err)
		}
	}

	for _, cls := range cfg.Classes {
		if err := r2.AddClass(cls.Ifname, cls.Name, cls.Parent, cls.Qlimit, cls.IsLeaf, cls.CurvesMsg()); err != nil {
			return fmt.Errorf("class %s on %s: %w", cls.Name, cls.Ifname, err)
		}
	}

	return nil
}

type Interrupted struct {
	os.Signal
}

func (m Interrupted) Error() string {
	return m.String()
}

// WaitInterrupted blocks until SIGINT/SIGTERM or ctx is canceled. SIGUSR1
// runs onDump and keeps waiting rather than returning. DumpLogs freezes
// each thread's ring permanently, so SIGUSR1 is a one-shot diagnostic:
// the daemon keeps forwarding but stops logging to that ring afterward.
func WaitInterrupted(ctx context.Context, onDump func()) error {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1)
	for {
		select {
		case v := <-ch:
			if v == syscall.SIGUSR1 {
				onDump()
				continue
			}
			return Interrupted{Signal: v}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
