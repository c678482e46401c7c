package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/flutlabs/pxflood/internal/agent"
)

const helpBanner = `
██████╗ ██╗  ██╗███████╗██╗      ██████╗  ██████╗ ██████╗
██╔══██╗╚██╗██╔╝██╔════╝██║     ██╔═══██╗██╔═══██╗██╔══██╗
██████╔╝ ╚███╔╝ █████╗  ██║     ██║   ██║██║   ██║██║  ██║
██╔═══╝  ██╔██╗ ██╔══╝  ██║     ██║   ██║██║   ██║██║  ██║
██║     ██╔╝ ██╗██║     ███████╗╚██████╔╝╚██████╔╝██████╔╝
╚═╝     ╚═╝  ╚═╝╚═╝     ╚══════╝ ╚═════╝  ╚═════╝ ╚═════╝
`

const helpDescription = `
Keep your pixels on the wall without babysitting a script.

Highlights:
  - Compiles the assigned image into raw PX commands once and floods from memory.
  - Follows the control API: image, offset and wall moves apply without restart.
  - Reports painted pixels every cycle and caches the last directive for offline starts.
  - Configure via file, env (PXFLOOD_*), or flags.
`

var longHelp = strings.TrimSpace(helpBanner) + "\n\n" + strings.TrimSpace(helpDescription)

var exampleUsage = strings.TrimSpace(`
  pxflood
  pxflood http://hoellipixelflut.de/client-api/ipv4/
  pxflood --max-conns 64 --interval 10s
  pxflood --config $HOME/.pxflood/config.toml --once
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := agent.DefaultConfig()
	var cfgPath string

	log := agent.Logger()

	root := &cobra.Command{
		Use:     "pxflood [api-url]",
		Short:   "Flood a pixel wall with the image the control API assigns you",
		Long:    longHelp,
		Example: exampleUsage,
		Args:    cobra.MaximumNArgs(1),
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = agent.DefaultConfigPath()
			}

			// Build set of changed flags
			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			// A positional api-url counts as explicit, like the flag.
			if len(args) == 1 && args[0] != "" {
				cfg.APIURL = args[0]
				changed["api-url"] = true
			}

			if cfgFile != "" && agent.FileExists(cfgFile) {
				fc, err := agent.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := agent.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
			}

			// Environment variables override file config but are overridden
			// by flags (checked via changed map).
			if err := agent.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			log.Info().Interface("config", cfg).Msg("configuration")

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigCh
				log.Info().Msg("received signal, stopping...")
				cancel()
			}()

			var updates <-chan agent.Config
			if cfgFile != "" && agent.FileExists(cfgFile) {
				w := agent.NewConfigWatcher(cfgFile, cfg, changed)
				go w.Run(ctx)
				updates = w.C
			}

			return supervise(ctx, cfg, updates, log)
		},
	}

	// Flags
	root.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.pxflood/config.toml)")
	root.Flags().StringVar(&cfg.APIURL, "api-url", cfg.APIURL, "control API base URL")

	root.Flags().IntVar(&cfg.MaxConns, "max-conns", cfg.MaxConns, "TCP connections to open to the wall")
	root.Flags().IntVar(&cfg.SendBuf, "send-buf", cfg.SendBuf, "kernel send buffer hint per connection in bytes")

	root.Flags().DurationVar(&cfg.ReportInterval, "interval", cfg.ReportInterval, "report cycle interval")
	root.Flags().DurationVar(&cfg.HTTPTimeout, "timeout", cfg.HTTPTimeout, "HTTP timeout for API and image fetches")
	root.Flags().DurationVar(&cfg.DialTimeout, "dial-timeout", cfg.DialTimeout, "TCP dial timeout per wall connection")

	root.Flags().StringVar(&cfg.StateDir, "state-dir", cfg.StateDir, "state directory for status.json")
	if err := root.Flags().MarkHidden("state-dir"); err != nil {
		log.Info().Err(err).Msg("failed to hide state-dir flag")
	}
	root.Flags().BoolVar(&cfg.Once, "once", cfg.Once, "run a single report cycle and exit")

	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("pxflood")
		os.Exit(1)
	}
}

// supervise keeps the engine alive the way an unattended wall client should:
// fatal errors (unreachable or drained wall) restart the whole bootstrap
// after a short pause. Cancellation and once mode end the loop.
func supervise(ctx context.Context, cfg agent.Config, updates <-chan agent.Config, log zerolog.Logger) error {
	for {
		err := agent.Run(ctx, cfg, updates)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			return nil
		}
		if cfg.Once {
			return err
		}

		delay := restartDelay()
		log.Error().Err(err).Dur("restart_in", delay).Msg("engine stopped")
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}

		// Pick up a pending config edit before the next bootstrap.
		select {
		case next := <-updates:
			next.StateDir, next.Once = cfg.StateDir, cfg.Once
			cfg = next
		default:
		}
	}
}

func restartDelay() time.Duration {
	// jitter ~ +/-20%
	j := 0.8 + 0.4*rand.Float64()
	return time.Duration(float64(10*time.Second) * j)
}
