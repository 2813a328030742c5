package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"loom/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and scaffold loom configuration",
		// Config subcommands must keep working when no config file exists
		// yet or the existing one fails to parse.
		Annotations: map[string]string{"skipConfigLoad": "true"},
	}

	configCmd.AddCommand(newConfigInitCommand(ctx))
	configCmd.AddCommand(newConfigShowCommand(ctx))
	configCmd.AddCommand(newConfigPathCommand(ctx))
	return configCmd
}

func newConfigInitCommand(ctx *commandContext) *cobra.Command {
	var path string
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a sample configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := resolveConfigTarget(path, ctx)
			if err != nil {
				return err
			}
			if _, statErr := os.Stat(target); statErr == nil && !overwrite {
				return fmt.Errorf("configuration already exists at %s (use --overwrite to replace it)", target)
			}
			if err := config.CreateSample(target); err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			fmt.Fprintf(stdout, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(stdout, "Edit it and run `loom daemon start` when ready.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&path, "path", "p", "", "Target path for the sample config")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing config file")
	return cmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration as TOML",
		RunE: func(cmd *cobra.Command, args []string) error {
			var flagPath string
			if ctx.configFlag != nil {
				flagPath = strings.TrimSpace(*ctx.configFlag)
			}
			cfg, resolvedPath, exists, err := config.Load(flagPath)
			if err != nil {
				return err
			}

			stdout := cmd.OutOrStdout()
			if exists {
				fmt.Fprintf(stdout, "# Resolved from %s\n", resolvedPath)
			} else {
				fmt.Fprintf(stdout, "# No config file at %s; showing defaults\n", resolvedPath)
			}

			rendered, err := toml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("render config: %w", err)
			}
			_, err = stdout.Write(rendered)
			return err
		},
	}
}

func newConfigPathCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			var flagPath string
			if ctx.configFlag != nil {
				flagPath = strings.TrimSpace(*ctx.configFlag)
			}
			target, err := resolveConfigTarget(flagPath, nil)
			if err != nil {
				return err
			}

			stdout := cmd.OutOrStdout()
			fmt.Fprintln(stdout, target)
			if _, statErr := os.Stat(target); os.IsNotExist(statErr) {
				fmt.Fprintln(stdout, "Not created yet; run `loom config init` to scaffold it.")
			}
			return nil
		},
	}
}

// resolveConfigTarget picks the config file location: an explicit path wins,
// then the persistent --config flag, then the default location.
func resolveConfigTarget(path string, ctx *commandContext) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" && ctx != nil && ctx.configFlag != nil {
		path = strings.TrimSpace(*ctx.configFlag)
	}
	if path == "" {
		return config.DefaultConfigPath()
	}
	return config.ExpandPath(path)
}
