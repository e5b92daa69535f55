package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/bleue740/huggy-code-haven-sub000/internal/routing"
)

func newProfilesCmd(rf *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "List or show routing profiles",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List built-in routing profiles",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				names, err := routing.List()
				if err != nil {
					return err
				}
				for _, n := range names {
					p, err := routing.LoadBuiltin(n)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%-12s %s\n", n, p.Description)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "show [name-or-path]",
			Short: "Print a routing profile",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := loadConfig(rf)
				if err != nil {
					return err
				}
				if len(args) == 1 {
					cfg.Routing.Profile = args[0]
				}
				r, err := buildRouter(cfg, cfg.Provider.Kind)
				if err != nil {
					return err
				}
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent(2)
				defer enc.Close()
				return enc.Encode(r.Profile())
			},
		},
	)
	return cmd
}
