package main

import (
	"github.com/spf13/cobra"

	"github.com/bleue740/huggy-code-haven-sub000/internal/mcpserver"
)

func newMCPCmd(rf *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the project as MCP tools over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(rf)
			if err != nil {
				return err
			}
			// stdout carries the protocol; logs go to the configured file only.
			log, err := newLogger(cfg, nil)
			if err != nil {
				return err
			}
			defer log.Close()

			p, err := newPipeline(cmd.Context(), cfg, log, pipelineOpts{})
			if err != nil {
				return err
			}
			defer p.close()

			s := mcpserver.New(p.orch, mcpserver.Options{
				Name:        "haven",
				Version:     version,
				ProjectFile: cfg.Project,
				User:        cfg.User,
				Ledger:      p.ledger,
				Snapshot:    snapshotOptions(cfg),
				Logger:      log.Logger,
			})
			return s.ServeStdio()
		},
	}
}
