package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/hashicorp/go-hclog"

	"github.com/aristath/workgraph/internal/config"
	"github.com/aristath/workgraph/internal/engine"
	"github.com/aristath/workgraph/internal/events"
	"github.com/aristath/workgraph/internal/logging"
	"github.com/aristath/workgraph/internal/persistence"
	"github.com/aristath/workgraph/internal/registry"
	"github.com/aristath/workgraph/internal/saver"
)

const usage = `usage: workgraph [-config file] <command> [args]

commands:
  init [-force]                                   write the default config to .workgraph/config.json (or -config)
  descriptors                                     list the registered task identifiers
  save [-restart-from run] [-reset] <file.json>   save a run snapshot
  show [-task name] <run>                         print a run projection or a task summary
  list                                            list stored runs
  delete <run>                                    delete a run
  view <run>                                      browse a run in the terminal
  serve [-addr host:port]                         serve the read-only HTTP API
`

var errUsage = errors.New("invalid usage")

func main() {
	// Create signal-aware context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one CLI invocation and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("workgraph", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	configPath := fs.String("config", "", "config file (default: ~/.workgraph and .workgraph lookup)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	if fs.Arg(0) == "init" {
		return exitCode(cmdInit(*configPath, fs.Args()[1:], stdout), stderr)
	}

	cmd, ok := commands[fs.Arg(0)]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", fs.Arg(0), usage)
		return 2
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading config: %v\n", err)
		return 1
	}

	logger, closer, err := newLogger(fs.Arg(0), cfg.Log)
	if err != nil {
		fmt.Fprintf(stderr, "Error creating logger: %v\n", err)
		return 1
	}
	defer closer.Close()

	a, err := newApp(ctx, cfg, logger, stdout)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer a.Close()

	return exitCode(cmd(ctx, a, fs.Args()[1:]), stderr)
}

// exitCode reports err on stderr and maps it to an exit code.
func exitCode(err error, stderr io.Writer) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, errUsage) {
		fmt.Fprintf(stderr, "%v\n\n%s", err, usage)
		return 2
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return 1
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load("", path)
	}
	return config.LoadDefault()
}

// newLogger keeps the terminal viewer's screen clean: unless a log file is
// configured, view logs nowhere.
func newLogger(command string, cfg config.LogConfig) (hclog.Logger, io.Closer, error) {
	if command == "view" && cfg.Path == "" {
		return hclog.NewNullLogger(), io.NopCloser(nil), nil
	}
	return logging.New("workgraph", cfg)
}

// app holds the wired components shared by all commands.
type app struct {
	cfg    *config.Config
	logger hclog.Logger
	store  persistence.Store
	states *persistence.SQLiteStore
	engine *engine.Resilient
	bus    *events.Bus
	saver  *saver.Saver
	stdout io.Writer

	// registry is nil when no descriptors file exists.
	registry *registry.Registry
}

func newApp(ctx context.Context, cfg *config.Config, logger hclog.Logger, stdout io.Writer) (*app, error) {
	store, err := persistence.Open(ctx, cfg.Store, logger.Named("store"))
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", cfg.Store.Backend, err)
	}

	states, err := persistence.NewSQLiteStore(ctx, cfg.Engine.StatePath)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("opening engine state: %w", err)
	}

	reg, err := loadRegistry(cfg.Registry.Path, logger)
	if err != nil {
		states.Close()
		store.Close()
		return nil, err
	}

	eng := engine.NewResilient("engine", engine.NewLocal(states, logger), cfg.Engine, logger)
	bus := events.NewBus()

	scfg := saver.Config{
		Store:            store,
		Engine:           eng,
		Events:           bus,
		Logger:           logger,
		ResetConcurrency: cfg.Engine.ResetConcurrency,
	}
	if reg != nil {
		scfg.Resolver = reg
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		states:   states,
		registry: reg,
		engine:   eng,
		bus:      bus,
		saver:    saver.New(scfg),
		stdout:   stdout,
	}, nil
}

// loadRegistry reads the descriptors file. A missing file is not an error:
// tasks are then saved as submitted.
func loadRegistry(path string, logger hclog.Logger) (*registry.Registry, error) {
	if path == "" {
		return nil, nil
	}
	reg, err := registry.LoadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Debug("no descriptors file, tasks are not resolved", "path", path)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading descriptors: %w", err)
	}
	logger.Debug("descriptors loaded", "path", path, "identifiers", len(reg.Identifiers()))
	return reg, nil
}

func (a *app) Close() {
	a.bus.Close()
	if err := a.states.Close(); err != nil {
		a.logger.Warn("closing engine state", "error", err)
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("closing store", "error", err)
	}
}
