package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bagofwords1/bagofwords-sub001/datasource"
	"github.com/bagofwords1/bagofwords-sub001/pipeline"
	"github.com/bagofwords1/bagofwords-sub001/profile"
	"github.com/bagofwords1/bagofwords-sub001/sandbox"
)

// Output formats accepted by --format.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

var errPipelineCancelled = errors.New("pipeline cancelled")

type runOptions struct {
	maxRetries int
	maxRows    int
	validate   bool
	format     string
	prompt     string
	files      []string
	quiet      bool
}

func newRunCommand(root *rootOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run PROGRAM...",
		Short: "Run the table pipeline over one or more candidate programs",
		Long: `Run the generate, validate, execute loop. Attempt k runs the k-th
program; once the list is exhausted the last program is retried.
Progress is written to stderr and the resulting table to stdout.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, root, opts, args)
		},
	}

	f := cmd.Flags()
	f.IntVar(&opts.maxRetries, "max-retries", 0, "maximum attempts (default from config)")
	f.IntVar(&opts.maxRows, "max-rows", 0, "maximum rows rendered (default from config)")
	f.BoolVar(&opts.validate, "validate", true, "statically validate programs before running them")
	f.StringVarP(&opts.format, "format", "o", formatTable, "output format: table, json or yaml")
	f.StringVar(&opts.prompt, "prompt", "", "request text recorded with the run")
	f.StringArrayVar(&opts.files, "file", nil, "attach a file as name=path (repeatable)")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "do not print progress events")
	return cmd
}

func runPipeline(cmd *cobra.Command, root *rootOptions, opts *runOptions, args []string) error {
	switch opts.format {
	case formatTable, formatJSON, formatYAML:
	default:
		return fmt.Errorf("unsupported format: %s", opts.format)
	}

	candidates, err := readPrograms(args)
	if err != nil {
		return err
	}
	files, err := parseFiles(opts.files)
	if err != nil {
		return err
	}

	env, err := root.setup(cmd.Context())
	if err != nil {
		return err
	}
	defer env.close()
	cfg := env.cfg

	maxRetries := cfg.Pipeline.MaxRetries
	if opts.maxRetries > 0 {
		maxRetries = opts.maxRetries
	}
	maxRows := cfg.Pipeline.MaxRows
	if opts.maxRows > 0 {
		maxRows = opts.maxRows
	}
	validate := cfg.Pipeline.Validate
	if cmd.Flags().Changed("validate") {
		validate = opts.validate
	}

	var validator pipeline.Validator
	if validate {
		validator = pipeline.StaticValidator(sandbox.NewStaticValidator(cfg.Sandbox.MaxCodeBytes))
	}
	executor := sandbox.NewExecutor(env.logger.Named("sandbox"), cfg.ExecutorConfig())
	ctrl := pipeline.NewController(env.logger.Named("pipeline"), pipeline.NewCandidateGenerator(candidates...), validator, executor)

	env.logger.Debug("running pipeline",
		zap.Int("candidates", len(candidates)),
		zap.Int("files", len(files)),
		zap.Int("max_retries", maxRetries),
		zap.Bool("validate", validate))

	events := ctrl.Stream(cmd.Context(), pipeline.Request{
		GenerationContext: pipeline.GenerationContext{Prompt: opts.prompt},
		Handles: sandbox.Handles{
			Sources: env.registry.Clients(),
			Files:   files,
		},
		MaxRetries: maxRetries,
		Token:      pipeline.FromContext(cmd.Context()),
	})

	var (
		done    pipeline.DonePayload
		gotDone bool
	)
	for e := range events {
		if e.Type == pipeline.EventDone {
			done, gotDone = e.Payload.(pipeline.DonePayload)
			continue
		}
		if !opts.quiet {
			renderEvent(cmd.ErrOrStderr(), e)
		}
	}
	if !gotDone {
		return errors.New("pipeline ended without a result")
	}

	if err := renderResult(cmd.OutOrStdout(), opts.format, done, maxRows); err != nil {
		return err
	}
	if done.Table == nil {
		return fmt.Errorf("pipeline failed: %s", pipeline.FailureSummary(done, cfg.Pipeline.SummaryLimit))
	}
	if cmd.Context().Err() != nil {
		return errPipelineCancelled
	}
	return nil
}

// readPrograms returns the contents of each program file in order.
func readPrograms(paths []string) ([]string, error) {
	programs := make([]string, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read program: %w", err)
		}
		programs = append(programs, string(data))
	}
	return programs, nil
}

// parseFiles turns name=path flags into file handles. A bare path uses its
// base name.
func parseFiles(args []string) ([]datasource.File, error) {
	files := make([]datasource.File, 0, len(args))
	seen := make(map[string]bool, len(args))
	for _, arg := range args {
		name, path, ok := strings.Cut(arg, "=")
		if !ok {
			path = arg
			name = filepath.Base(arg)
		}
		if name == "" || path == "" {
			return nil, fmt.Errorf("invalid --file %q, want name=path", arg)
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate file name: %s", name)
		}
		seen[name] = true
		files = append(files, datasource.File{Name: name, Path: path})
	}
	return files, nil
}

// renderResult writes the widget for a produced table, or the error
// history when the run failed.
func renderResult(w io.Writer, format string, done pipeline.DonePayload, maxRows int) error {
	var widget *profile.WidgetPayload
	if done.Table != nil {
		p := profile.ToWidgetPayload(done.Table, maxRows)
		widget = &p
	}

	switch format {
	case formatJSON:
		return renderJSON(w, newReport(done, widget))
	case formatYAML:
		return renderYAML(w, newReport(done, widget))
	default:
		if widget == nil {
			return renderErrors(w, done.Errors)
		}
		return renderWidget(w, *widget)
	}
}
