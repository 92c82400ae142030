// Package cmd is the shared main: resolve and load config, bootstrap the
// application, then run the bot until SIGINT or SIGTERM.
package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m3rciful/scanbot/core/buildinfo"
	coreconfig "github.com/m3rciful/scanbot/core/config"
	"github.com/m3rciful/scanbot/core/logger"
	coretelegram "github.com/m3rciful/scanbot/core/telegram"
)

// ConfigCarrier is any bot config embedding the core one.
type ConfigCarrier interface {
	CoreConfig() *coreconfig.Config
}

// TelegramApp is a bootstrapped bot.
type TelegramApp interface {
	TelegramRunOptions() (coretelegram.RunOptions, error)
}

// Options wire a bot binary.
type Options struct {
	// Name is the binary name used in flag usage and -version output.
	Name string
	// Args are the command-line arguments without the program name; nil means os.Args[1:].
	Args []string
	// ConfigEnvVar names the variable holding the config path (default CONFIG_PATH).
	ConfigEnvVar      string
	DefaultConfigPath string

	LoadConfig func(path string) (ConfigCarrier, error)
	Bootstrap  func(cfg ConfigCarrier) (TelegramApp, error)

	ShutdownLogger func() error
	RunTelegram    func(ctx context.Context, opts coretelegram.RunOptions) error
	// Stdout receives -version output; nil means os.Stdout.
	Stdout io.Writer
}

// ErrVersionShown is returned after -version printed the build stamp.
var ErrVersionShown = errors.New("cmd: version shown")

// Run parses flags, loads configuration and runs the bot.
func Run(opts Options) error {
	if opts.LoadConfig == nil || opts.Bootstrap == nil {
		return fmt.Errorf("cmd: LoadConfig and Bootstrap are required")
	}

	cfgPath, showVersion, err := parseFlags(opts)
	if err != nil {
		return err
	}
	if showVersion {
		out := opts.Stdout
		if out == nil {
			out = os.Stdout
		}
		fmt.Fprintf(out, "%s %s\n", opts.Name, buildinfo.String())
		return ErrVersionShown
	}
	if cfgPath == "" {
		return fmt.Errorf("cmd: no config path: pass -config or set %s", envName(opts))
	}

	log.Printf("loading config: %s", cfgPath)
	cfg, err := opts.LoadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("cmd: failed to load config: %w", err)
	}
	if cfg == nil || cfg.CoreConfig() == nil {
		return fmt.Errorf("cmd: loaded config is missing core configuration")
	}

	// Bootstrap initializes the logger; flush it even when bootstrap fails later on.
	shutdownLogger := opts.ShutdownLogger
	if shutdownLogger == nil {
		shutdownLogger = logger.Shutdown
	}
	defer func() {
		if err := shutdownLogger(); err != nil {
			log.Printf("logger shutdown error: %v", err)
		}
	}()

	startedAt := time.Now()
	application, err := opts.Bootstrap(cfg)
	if err != nil {
		return fmt.Errorf("cmd: bootstrap failed: %w", err)
	}
	runOpts, err := application.TelegramRunOptions()
	if err != nil {
		return fmt.Errorf("cmd: telegram options build failed: %w", err)
	}
	announceLifecycle(&runOpts, startedAt)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	run := opts.RunTelegram
	if run == nil {
		run = coretelegram.RunTelegram
	}
	return run(ctx, runOpts)
}

func envName(opts Options) string {
	if opts.ConfigEnvVar != "" {
		return opts.ConfigEnvVar
	}
	return "CONFIG_PATH"
}

// parseFlags resolves the config path: -config, then the env var, then the default.
func parseFlags(opts Options) (string, bool, error) {
	args := opts.Args
	if args == nil {
		args = os.Args[1:]
	}
	fs := flag.NewFlagSet(opts.Name, flag.ContinueOnError)
	path := fs.String("config", "", "path to the YAML config (overrides $"+envName(opts)+")")
	version := fs.Bool("version", false, "print the build version and exit")
	if err := fs.Parse(args); err != nil {
		return "", false, err
	}
	if *path != "" {
		return *path, *version, nil
	}
	if env := os.Getenv(envName(opts)); env != "" {
		return env, *version, nil
	}
	return opts.DefaultConfigPath, *version, nil
}

func announceLifecycle(runOpts *coretelegram.RunOptions, startedAt time.Time) {
	prevStart := runOpts.OnStart
	runOpts.OnStart = func(ctx context.Context, rt coretelegram.Runtime) error {
		if prevStart != nil {
			if err := prevStart(ctx, rt); err != nil {
				return err
			}
		}
		logger.Info(ctx, "app", "ready",
			slog.String("version", buildinfo.Version),
			slog.Duration("startup_duration", logger.Took(startedAt)),
		)
		return nil
	}

	prevStop := runOpts.OnStop
	runOpts.OnStop = func(ctx context.Context, rt coretelegram.Runtime) error {
		logger.Info(ctx, "app", "shutdown")
		if prevStop != nil {
			return prevStop(ctx, rt)
		}
		return nil
	}
}
