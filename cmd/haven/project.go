package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/bleue740/huggy-code-haven-sub000/internal/snapshot"
	"github.com/bleue740/huggy-code-haven-sub000/internal/vfs"
)

func newProjectCmd(rf *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Inspect or initialize the project file",
	}
	cmd.AddCommand(newProjectInitCmd(rf), newProjectShowCmd(rf), newProjectCatCmd(rf))
	return cmd
}

func newProjectInitCmd(rf *rootFlags) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a project holding the default entry file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(rf)
			if err != nil {
				return err
			}
			if _, err := os.Stat(cfg.Project); err == nil && !force {
				return exitError(exitInput, "project %s already exists (use --force to overwrite)", cfg.Project)
			}
			if err := ensureDir(cfg.Project); err != nil {
				return err
			}
			if err := vfs.SaveFile(vfs.New(), cfg.Project); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "initialized %s\n", cfg.Project)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing project")
	return cmd
}

// projectSummary is the printable view of a project.
type projectSummary struct {
	Path  string        `json:"path" yaml:"path"`
	Hash  string        `json:"hash" yaml:"hash"`
	Files []fileSummary `json:"files" yaml:"files"`
}

type fileSummary struct {
	Path  string `json:"path" yaml:"path"`
	Lines int    `json:"lines" yaml:"lines"`
	Bytes int    `json:"bytes" yaml:"bytes"`
}

func summarizeProject(path string, s *vfs.Store) projectSummary {
	out := projectSummary{Path: path, Hash: s.Hash()}
	for _, f := range s.Files() {
		out.Files = append(out.Files, fileSummary{Path: f.Path, Lines: vfs.LineCount(f.Content), Bytes: len(f.Content)})
	}
	return out
}

func newProjectShowCmd(rf *rootFlags) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "List the project's files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(rf)
			if err != nil {
				return err
			}
			s, err := vfs.LoadFile(cfg.Project)
			if err != nil {
				return exitError(exitInput, "failed to load project: %v", err)
			}
			return writeSummary(cmd.OutOrStdout(), summarizeProject(cfg.Project, s), format)
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text, json, or yaml")
	return cmd
}

func writeSummary(w io.Writer, sum projectSummary, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(sum)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(sum)
	case "text":
		fmt.Fprintf(w, "%s (%s)\n", sum.Path, sum.Hash)
		for _, f := range sum.Files {
			fmt.Fprintf(w, "  %-24s %5d lines\n", f.Path, f.Lines)
		}
		return nil
	}
	return exitError(exitInput, "unknown format: %s", format)
}

func newProjectCatCmd(rf *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "cat [path]",
		Short: "Print one file, or every file as a single preview document",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rf)
			if err != nil {
				return err
			}
			s, err := vfs.LoadFile(cfg.Project)
			if err != nil {
				return exitError(exitInput, "failed to load project: %v", err)
			}
			if len(args) == 0 {
				fmt.Fprint(cmd.OutOrStdout(), s.Combined())
				return nil
			}
			content, ok := s.Read(args[0])
			if !ok {
				return exitError(exitInput, "file %q not found; project has:\n%s", args[0], snapshot.FileTree(s.ListPaths()))
			}
			fmt.Fprint(cmd.OutOrStdout(), content)
			return nil
		},
	}
}

func ensureDir(file string) error {
	dir := filepath.Dir(file)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	return nil
}
