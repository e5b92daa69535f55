package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var version = "0.1.0"

// rootFlags are shared by every subcommand.
type rootFlags struct {
	configFile string
	logLevel   string
	verbose    bool

	v *viper.Viper
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		var ee *exitErr
		if errors.As(err, &ee) {
			fmt.Fprintln(os.Stderr, ee.msg)
			os.Exit(ee.code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rf := &rootFlags{v: viper.New()}

	root := &cobra.Command{
		Use:           "haven",
		Short:         "Build and iterate on front-end apps through conversation",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&rf.configFile, "config", "", "Config file (default: .haven.yaml in the working directory or home)")
	pf.StringVar(&rf.logLevel, "log-level", "", "Log level: debug, info, warn, or error")
	pf.BoolVar(&rf.verbose, "verbose", false, "Print processing steps to stderr")
	pf.String("user", "", "User ID charged for turns")
	pf.String("project", "", "Project file path")
	_ = rf.v.BindPFlag("user", pf.Lookup("user"))
	_ = rf.v.BindPFlag("project", pf.Lookup("project"))

	root.AddCommand(
		newGenerateCmd(rf),
		newChatCmd(rf),
		newServeCmd(rf),
		newMCPCmd(rf),
		newCreditsCmd(rf),
		newProjectCmd(rf),
		newProfilesCmd(rf),
	)
	return root
}

type exitErr struct {
	code int
	msg  string
}

func (e *exitErr) Error() string { return e.msg }

func exitError(code int, format string, args ...any) error {
	return &exitErr{code: code, msg: fmt.Sprintf(format, args...)}
}
