package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/browser"
	"github.com/sarchlab/memhier/core"
	"github.com/sarchlab/memhier/datarecording"
	"github.com/sarchlab/memhier/hierarchy"
	"github.com/sarchlab/memhier/monitoring"
	"github.com/sarchlab/memhier/sim"
	"github.com/spf13/cobra"
)

const defaultEnvFile = ".env"

type runOptions struct {
	configFile  string
	envFile     string
	sets        []string
	json        bool
	record      string
	logEvents   bool
	monitor     bool
	monitorPort int
	openBrowser bool
	parallelIDs bool
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the workload through the hierarchy and print a report",
		Long: `Run builds the hierarchy and runs the configured workload to the ` +
			`end. Parameters are layered in this order, later ones winning: ` +
			`defaults, the --config file, MEMHIER_* environment variables ` +
			`(after loading --env-file), parameter flags, and --set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.configFile, "config", "c", "",
		"YAML file that overlays the default configuration")
	flags.StringVar(&opts.envFile, "env-file", defaultEnvFile,
		"file of MEMHIER_* variables to load into the environment")
	flags.StringArrayVar(&opts.sets, "set", nil,
		"override a parameter as name=value, can be repeated")
	flags.BoolVar(&opts.json, "json", false,
		"print the report as JSON")
	flags.StringVar(&opts.record, "record", "",
		"record every access and the cache statistics into a SQLite file")
	flags.BoolVar(&opts.logEvents, "log-events", false,
		"log every event and every completed request to stderr")
	flags.BoolVar(&opts.monitor, "monitor", false,
		"serve the simulation state over HTTP while it runs")
	flags.IntVar(&opts.monitorPort, "monitor-port", 0,
		"port of the monitoring server, 0 picks a free port")
	flags.BoolVar(&opts.openBrowser, "open-browser", false,
		"open the monitoring page in a browser")
	flags.BoolVar(&opts.parallelIDs, "parallel-ids", false,
		"use globally unique request IDs, so that recordings of several "+
			"runs can be merged")

	for _, p := range hierarchy.Params() {
		flags.String(paramFlagName(p.Name), p.Default(), p.Usage)
	}

	return cmd
}

// paramFlagName turns l2_size into l2-size.
func paramFlagName(param string) string {
	return strings.ReplaceAll(param, "_", "-")
}

func run(cmd *cobra.Command, opts *runOptions) error {
	if opts.parallelIDs {
		sim.UseParallelIDGenerator()
	}

	config, err := baseConfig(opts.configFile)
	if err != nil {
		return err
	}

	overrides, err := collectOverrides(cmd, opts)
	if err != nil {
		return err
	}

	h, err := hierarchy.MakeBuilder().
		WithConfig(config).
		WithOverrides(overrides...).
		Build()
	if err != nil {
		return err
	}

	if opts.logEvents {
		logger := log.New(cmd.ErrOrStderr(), "", 0)
		h.Engine.AcceptHook(sim.NewEventLogger(logger))
		h.Core.AcceptHook(core.NewCompletionLogger(logger))
	}

	var rec *recording
	if opts.record != "" {
		rec = startRecording(opts.record, h)
	}

	var finish func()
	if opts.monitor {
		finish = startMonitor(h, opts)
	}

	report, runErr := h.Run()

	if finish != nil {
		finish()
	}

	if rec != nil {
		if err := rec.end(h); err != nil {
			return err
		}
	}

	if runErr != nil {
		return runErr
	}

	return writeReport(cmd.OutOrStdout(), report, opts.json)
}

func baseConfig(path string) (hierarchy.Config, error) {
	if path == "" {
		return hierarchy.DefaultConfig(), nil
	}

	return hierarchy.LoadConfig(path)
}

// collectOverrides gathers the overrides from the environment, the
// parameter flags that are set, and --set, in this order.
func collectOverrides(
	cmd *cobra.Command,
	opts *runOptions,
) ([]hierarchy.Override, error) {
	if err := loadEnvFile(cmd, opts.envFile); err != nil {
		return nil, err
	}

	overrides := hierarchy.OverridesFromEnviron(os.Environ())

	for _, p := range hierarchy.Params() {
		flag := cmd.Flags().Lookup(paramFlagName(p.Name))
		if flag == nil || !flag.Changed {
			continue
		}

		overrides = append(overrides, hierarchy.Override{
			Name:  p.Name,
			Value: flag.Value.String(),
		})
	}

	for _, s := range opts.sets {
		o, err := hierarchy.ParseOverride(s)
		if err != nil {
			return nil, err
		}

		overrides = append(overrides, o)
	}

	return overrides, nil
}

// loadEnvFile loads the variables of path that are not set yet. The default
// file is optional. A file that is asked for explicitly must exist.
func loadEnvFile(cmd *cobra.Command, path string) error {
	if path == "" {
		return nil
	}

	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("env-file") {
		return nil
	}

	if err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}

	return nil
}

func writeReport(w io.Writer, report hierarchy.RunReport, asJSON bool) error {
	if asJSON {
		return report.WriteJSON(w)
	}

	return report.WriteText(w)
}

type recording struct {
	recorder datarecording.DataRecorder
	exec     *datarecording.ExecRecorder
}

func startRecording(path string, h *hierarchy.Hierarchy) *recording {
	recorder := datarecording.New(strings.TrimSuffix(path, ".sqlite3"))

	exec := datarecording.NewExecRecorder(recorder)
	exec.Start()

	for _, p := range hierarchy.Params() {
		exec.Property(p.Name, p.Get(h.Config))
	}

	h.Core.AcceptHook(datarecording.NewAccessRecorder(recorder))

	return &recording{recorder: recorder, exec: exec}
}

func (r *recording) end(h *hierarchy.Hierarchy) error {
	datarecording.NewCacheStatsRecorder(r.recorder).Record(h.Caches()...)
	r.exec.End()

	return r.recorder.Close()
}

// startMonitor serves h while it runs and returns the function that takes
// down the progress bar.
func startMonitor(h *hierarchy.Hierarchy, opts *runOptions) func() {
	m := monitoring.NewMonitor().WithPortNumber(opts.monitorPort)
	m.RegisterEngine(h.Engine)

	for _, c := range h.Components() {
		m.RegisterComponent(c)
	}

	m.RegisterStats(func() any { return h.Report() })

	bar := m.CreateProgressBar("Core", uint64(h.NumAccesses()))
	h.Core.AcceptHook(sim.HookFunc(func(ctx sim.HookCtx) {
		if ctx.Pos == core.HookPosReqComplete {
			bar.IncrementFinished(1)
		}
	}))

	url := m.StartServer()

	if opts.openBrowser {
		if err := browser.OpenURL(url); err != nil {
			fmt.Fprintf(os.Stderr, "Cannot open a browser: %v\n", err)
		}
	}

	return func() { m.CompleteProgressBar(bar) }
}
