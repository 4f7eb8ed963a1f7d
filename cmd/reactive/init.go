package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vango-dev/reactive/internal/config"
	"github.com/vango-dev/reactive/internal/errors"
)

func initCmd() *cobra.Command {
	var (
		force   bool
		useYAML bool
	)

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write a default configuration file",
		Long: `Write a reactive.json (or reactive.yaml) with default settings.

Examples:
  reactive init
  reactive init ./service
  reactive init --force
  reactive init --yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			return runInit(cmd, dir, force, useYAML)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing configuration file")
	cmd.Flags().BoolVar(&useYAML, "yaml", false, "Write reactive.yaml instead of reactive.json")

	return cmd
}

func runInit(cmd *cobra.Command, dir string, force, useYAML bool) error {
	st, err := os.Stat(dir)
	if err != nil || !st.IsDir() {
		return errors.New("X001").
			WithDetail(dir + " is not a directory")
	}

	name := config.ConfigFileName
	if useYAML {
		name = config.YAMLConfigFileName
	}
	path := filepath.Join(dir, name)
	if config.Exists(dir) && !force {
		return errors.New("X001").
			WithDetail("a configuration file already exists in " + dir).
			WithSuggestion("Pass --force to overwrite it")
	}

	cfg := config.New()
	cfg.Name = filepath.Base(mustAbs(dir))
	if err := cfg.SaveTo(path); err != nil {
		return err
	}

	success(cmd.OutOrStdout(), "Created %s", path)
	return nil
}

func mustAbs(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return dir
	}
	return abs
}
