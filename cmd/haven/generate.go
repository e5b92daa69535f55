package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bleue740/huggy-code-haven-sub000/internal/config"
	"github.com/bleue740/huggy-code-haven-sub000/internal/credit"
	"github.com/bleue740/huggy-code-haven-sub000/internal/events"
	"github.com/bleue740/huggy-code-haven-sub000/internal/llm"
	"github.com/bleue740/huggy-code-haven-sub000/internal/orchestrator"
	"github.com/bleue740/huggy-code-haven-sub000/internal/patch"
	"github.com/bleue740/huggy-code-haven-sub000/internal/render"
	"github.com/bleue740/huggy-code-haven-sub000/internal/snapshot"
	"github.com/bleue740/huggy-code-haven-sub000/internal/vfs"
)

type generateFlags struct {
	format         string
	out            string
	diffOut        string
	historyPath    string
	tier           string
	dryRun         bool
	failOnWarnings bool
	debug          bool

	// provider and ledger replace the configured ones in tests.
	provider llm.Provider
	ledger   credit.Ledger
	stdout   io.Writer
	stderr   io.Writer
}

func newGenerateCmd(rf *rootFlags) *cobra.Command {
	f := &generateFlags{}

	cmd := &cobra.Command{
		Use:   "generate <message...>",
		Short: "Run one turn against the project and apply the result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rf)
			if err != nil {
				return err
			}
			f.stdout, f.stderr = cmd.OutOrStdout(), cmd.ErrOrStderr()
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runGenerate(ctx, cfg, strings.Join(args, " "), f)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.format, "format", "md", "Output format: md, json, or ndjson")
	flags.StringVar(&f.out, "out", "", "Output file path (default: stdout)")
	flags.StringVar(&f.diffOut, "diff-out", "", "Write the project change as a unified diff")
	flags.StringVar(&f.historyPath, "history", "", "Conversation history file, read before and extended after the turn")
	flags.StringVar(&f.tier, "tier", "", "Pin the model tier: fast or large")
	flags.BoolVar(&f.dryRun, "dry-run", false, "Do not write the project file")
	flags.BoolVar(&f.failOnWarnings, "fail-on-warnings", false, "Exit non-zero if the result carries warnings")
	flags.BoolVar(&f.debug, "debug", false, "Save every stage prompt and output to a debug file")

	return cmd
}

func runGenerate(ctx context.Context, cfg config.Config, message string, f *generateFlags) error {
	if f.stdout == nil {
		f.stdout = os.Stdout
	}
	if f.stderr == nil {
		f.stderr = os.Stderr
	}
	switch f.format {
	case "md", "json", "ndjson":
	default:
		return exitError(exitInput, "unknown format: %s", f.format)
	}
	if f.tier != "" {
		cfg.Models.Force = f.tier
		if err := cfg.Validate(); err != nil {
			return exitError(exitInput, "%v", err)
		}
	}

	log, err := newLogger(cfg, f.stderr)
	if err != nil {
		return err
	}
	defer log.Close()

	// 1. Load project and history
	log.Debug("loading project", "path", cfg.Project)
	project, err := vfs.LoadFile(cfg.Project)
	if err != nil {
		return exitError(exitInput, "failed to load project: %v", err)
	}
	history, err := loadHistory(f.historyPath)
	if err != nil {
		return exitError(exitInput, "failed to load history: %v", err)
	}

	// 2. Build the pipeline
	po := pipelineOpts{provider: f.provider, ledger: f.ledger}
	if f.debug {
		debugPath := "haven-debug-trace.txt"
		log.Debug("writing stage trace", "path", debugPath)
		tf, err := os.OpenFile(debugPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
		if err != nil {
			log.Warn("failed to open debug trace", "err", err)
		} else {
			defer tf.Close()
			po.trace = tf
		}
	}
	p, err := newPipeline(ctx, cfg, log, po)
	if err != nil {
		return err
	}
	defer p.close()

	// 3. Run the turn
	snap := snapshot.Build(project, snapshotOptions(cfg))
	if snap.Truncated {
		log.Warn("project context truncated", "max_bytes", cfg.Pipeline.MaxContextBytes)
	}
	req := orchestrator.TurnRequest{
		Messages:       append(history, llm.Message{Role: "user", Content: message}),
		ProjectContext: snap.ProjectContext,
		FileTree:       snap.FileTree,
	}

	var sink events.Sink
	var rec events.Recorder
	if f.format == "ndjson" {
		sink = events.Tee(&rec, events.NewNDJSONWriter(f.stdout))
	} else {
		sink = events.Tee(&rec, progressSink(log.Logger))
	}

	res, err := p.orch.Run(ctx, cfg.User, req, sink)
	if err != nil {
		return turnError(err)
	}

	// 4. Apply
	next, err := patch.Apply(project, res)
	if err != nil {
		return exitError(exitMalformed, "failed to apply result: %v", err)
	}
	if !f.dryRun && !res.Conversational {
		log.Debug("saving project", "path", cfg.Project, "files", next.Len())
		if err := ensureDir(cfg.Project); err != nil {
			return err
		}
		if err := vfs.SaveFile(next, cfg.Project); err != nil {
			return fmt.Errorf("failed to save project: %w", err)
		}
	}
	if f.historyPath != "" {
		h := append(req.Messages, llm.Message{Role: "assistant", Content: assistantSummary(res)})
		if err := saveHistory(f.historyPath, h); err != nil {
			return fmt.Errorf("failed to save history: %w", err)
		}
	}

	// 5. Output
	var output string
	switch f.format {
	case "json":
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal output: %w", err)
		}
		output = string(data) + "\n"
	case "md":
		output = render.Markdown(res, project)
	}
	if output != "" {
		if f.out != "" {
			log.Debug("writing output", "path", f.out)
			if err := os.WriteFile(f.out, []byte(output), 0644); err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}
		} else {
			fmt.Fprint(f.stdout, output)
		}
	}

	// 6. Diff output
	if f.diffOut != "" {
		log.Debug("writing diff", "path", f.diffOut)
		if err := patch.WriteDiffFile(project, next, f.diffOut); err != nil {
			return fmt.Errorf("failed to write diff: %w", err)
		}
	}

	// 7. Exit code
	if f.failOnWarnings && len(res.Warnings) > 0 {
		return exitError(exitTurnFailed, "result carries %d warning(s)", len(res.Warnings))
	}
	return nil
}

// turnError maps a failed turn to an exit code.
func turnError(err error) error {
	var mal *llm.MalformedAgentOutput
	var call *llm.AgentCallFailed
	switch {
	case errors.Is(err, orchestrator.ErrBadRequest):
		return exitError(exitInput, "%v", err)
	case errors.Is(err, orchestrator.ErrCancelled):
		return exitError(exitTurnFailed, "turn cancelled")
	case errors.Is(err, credit.ErrInsufficientCredit):
		return exitError(exitTurnFailed, "insufficient credit: %v", err)
	case errors.As(err, &mal):
		return exitError(exitMalformed, "model output failed validation: %v", err)
	case errors.As(err, &call):
		return exitError(exitProvider, "model call failed: %v", err)
	}
	return exitError(exitTurnFailed, "turn failed: %v", err)
}

// progressSink logs phase changes while a turn runs.
func progressSink(log *slog.Logger) events.Sink {
	return events.SinkFunc(func(_ context.Context, e events.Event) error {
		switch e.Type {
		case events.TypePhase:
			log.Info(e.Message, "phase", e.Phase)
		case events.TypeFileGenerated:
			log.Info("file generated", "path", e.Path, "lines", e.LinesCount)
		}
		return nil
	})
}

func assistantSummary(res *events.Result) string {
	if res.Conversational {
		return res.Reply
	}
	paths := make([]string, 0, len(res.Files))
	for _, f := range res.Files {
		paths = append(paths, f.Path)
	}
	s := fmt.Sprintf("%s: updated %s", res.Intent, strings.Join(paths, ", "))
	if len(res.DeletedFiles) > 0 {
		s += "; deleted " + strings.Join(res.DeletedFiles, ", ")
	}
	return s
}

func loadHistory(path string) ([]llm.Message, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var msgs []llm.Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return msgs, nil
}

func saveHistory(path string, msgs []llm.Message) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	data, err := json.MarshalIndent(msgs, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
