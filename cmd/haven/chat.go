package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/bleue740/huggy-code-haven-sub000/internal/events"
	"github.com/bleue740/huggy-code-haven-sub000/internal/orchestrator"
	"github.com/bleue740/huggy-code-haven-sub000/internal/tui"
	"github.com/bleue740/huggy-code-haven-sub000/internal/vfs"
)

func newChatCmd(rf *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Open an interactive chat session on the project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(rf)
			if err != nil {
				return err
			}
			// The TUI owns the terminal; logs go to the configured file only.
			log, err := newLogger(cfg, nil)
			if err != nil {
				return err
			}
			defer log.Close()

			project, err := vfs.LoadFile(cfg.Project)
			if err != nil {
				return exitError(exitInput, "failed to load project: %v", err)
			}

			p, err := newPipeline(cmd.Context(), cfg, log, pipelineOpts{})
			if err != nil {
				return err
			}
			defer p.close()

			run := func(ctx context.Context, req orchestrator.TurnRequest, sink events.Sink) (*events.Result, error) {
				return p.orch.Run(ctx, cfg.User, req, sink)
			}
			save := func(s *vfs.Store) error {
				if err := ensureDir(cfg.Project); err != nil {
					return err
				}
				return vfs.SaveFile(s, cfg.Project)
			}

			_, err = tui.Run(project, run, tui.Options{Snapshot: snapshotOptions(cfg), OnApply: save})
			return err
		},
	}
}
