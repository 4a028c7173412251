package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	gojson "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/aristath/workgraph/internal/config"
	"github.com/aristath/workgraph/internal/graph"
	"github.com/aristath/workgraph/internal/saver"
	"github.com/aristath/workgraph/internal/server"
	"github.com/aristath/workgraph/internal/tui"
)

type commandFunc func(ctx context.Context, a *app, args []string) error

var commands = map[string]commandFunc{
	"descriptors": cmdDescriptors,
	"save":        cmdSave,
	"show":        cmdShow,
	"list":        cmdList,
	"delete":      cmdDelete,
	"view":        cmdView,
	"serve":       cmdServe,
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// cmdInit writes the default configuration. It runs before any config is
// loaded, so it takes the -config path directly.
func cmdInit(configPath string, args []string, stdout io.Writer) error {
	fs := newFlagSet("init")
	force := fs.Bool("force", false, "overwrite an existing config file")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() != 0 {
		return fmt.Errorf("%w: init takes no arguments", errUsage)
	}

	path := configPath
	if path == "" {
		path = filepath.Join(".workgraph", "config.json")
	}
	if _, err := os.Stat(path); err == nil && !*force {
		return fmt.Errorf("%s already exists (use -force to overwrite)", path)
	}
	if err := config.Save(config.DefaultConfig(), path); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %s\n", path)
	return nil
}

func cmdDescriptors(ctx context.Context, a *app, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("%w: descriptors takes no arguments", errUsage)
	}
	if a.registry == nil {
		fmt.Fprintf(a.stdout, "no descriptors file at %s\n", a.cfg.Registry.Path)
		return nil
	}

	t := newTable().Headers("IDENTIFIER", "NODE TYPE", "INPUTS", "OUTPUTS", "EXECUTOR")
	for _, id := range a.registry.Identifiers() {
		d, err := a.registry.Descriptor(id)
		if err != nil {
			return err
		}
		t.Row(id, string(d.NodeType), strings.Join(d.Inputs, ", "), strings.Join(d.Outputs, ", "), string(d.Executor.Kind))
	}
	fmt.Fprintln(a.stdout, t.String())
	return nil
}

func cmdSave(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("save")
	restartFrom := fs.String("restart-from", "", "diff against this run instead of the run's own previous version")
	reset := fs.Bool("reset", false, "reset every task")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: save takes one snapshot file", errUsage)
	}

	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("reading snapshot: %w", err)
	}
	var snap graph.Snapshot
	if err := gojson.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decoding snapshot %s: %w", fs.Arg(0), err)
	}
	if snap.UUID == "" {
		snap.UUID = uuid.NewString()
	}
	if *reset {
		snap.SetAction(graph.ActionReset)
	}

	var opts []saver.Option
	if *restartFrom != "" {
		opts = append(opts, saver.WithRestartFrom(*restartFrom))
	}
	res, err := a.saver.Save(ctx, &snap, opts...)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.stdout, "run %s saved (%d tasks)\n", snap.UUID, len(res.Snapshot.Tasks))
	if res.Diff != nil {
		printNames(a.stdout, "new", res.Diff.New)
		printNames(a.stdout, "modified", res.Diff.Modified)
		printNames(a.stdout, "removed", res.Diff.Removed)
	}
	printNames(a.stdout, "reset", res.Reset)
	printNames(a.stdout, "failed resets", res.FailedResets)
	return nil
}

func printNames(w io.Writer, label string, names graph.NameSet) {
	if len(names) == 0 {
		return
	}
	fmt.Fprintf(w, "  %s: %s\n", label, strings.Join(names.Sorted(), ", "))
}

func cmdShow(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("show")
	taskName := fs.String("task", "", "print the summary of one task")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: show takes one run id", errUsage)
	}

	snap, found, err := a.saver.Load(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("run %s not found", fs.Arg(0))
	}

	if *taskName == "" {
		out, err := gojson.MarshalIndent(graph.Project(snap), "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(a.stdout, string(out))
		return nil
	}

	task, ok := snap.Tasks[*taskName]
	if !ok {
		return fmt.Errorf("run %s has no task %q", snap.UUID, *taskName)
	}
	t := newTable()
	for _, row := range graph.Summarize(task) {
		t.Row(row[0], row[1])
	}
	fmt.Fprintln(a.stdout, t.String())
	return nil
}

func cmdList(ctx context.Context, a *app, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("%w: list takes no arguments", errUsage)
	}
	runs, err := a.store.List(ctx)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(a.stdout, "no runs")
		return nil
	}

	t := newTable().Headers("ID", "NAME", "STATE", "TASKS", "UPDATED")
	for _, r := range runs {
		t.Row(r.ID, r.Name, string(r.State), strconv.Itoa(r.Tasks), r.LastUpdate.Local().Format(time.DateTime))
	}
	fmt.Fprintln(a.stdout, t.String())
	return nil
}

func newTable() *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(tui.StyleHelp)
}

func cmdDelete(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: delete takes one run id", errUsage)
	}
	if err := a.saver.Delete(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "run %s deleted\n", args[0])
	return nil
}

func cmdServe(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("serve")
	addr := fs.String("addr", a.cfg.Server.Addr, "listen address")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	return server.New(a.store, a.logger).Listen(ctx, *addr)
}

func cmdView(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: view takes one run id", errUsage)
	}

	// Saves from other processes are picked up by polling; the bus covers
	// saves made in this one.
	model := tui.New(a.store, args[0], a.bus.SubscribeAll(256)).
		WithPollInterval(a.cfg.Viewer.PollInterval.Std())

	// Start Bubble Tea program in a goroutine so the caller can handle shutdown
	p := tea.NewProgram(model, tea.WithAltScreen())
	errChan := make(chan error, 1)
	go func() {
		_, err := p.Run()
		errChan <- err
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		a.logger.Info("shutdown signal received, closing viewer")
		p.Quit()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		select {
		case err := <-errChan:
			return err
		case <-shutdownCtx.Done():
			return fmt.Errorf("viewer did not exit in time")
		}
	}
}
