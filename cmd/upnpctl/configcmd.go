package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/upnpctl/internal/config"
	"github.com/muurk/upnpctl/internal/ui"
)

var forceInit bool

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)

	configInitCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing file without asking")
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration in effect for this invocation: the file (or the
defaults when there is none) with any command-line overrides applied. The output is always YAML.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := settings.Marshal()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with default values",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolvedConfigPath()
		if err != nil {
			return err
		}

		if _, err := os.Stat(path); err == nil && !forceInit {
			ok := ui.Confirm(os.Stdin, cmd.OutOrStdout(), "Overwrite configuration?", []string{
				path + " already exists.",
				"Its settings will be replaced with the defaults.",
			}, "overwrite")
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
				return nil
			}
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to check config file: %w", err)
		}

		if err := config.Default().Save(path); err != nil {
			return fail(cmd, "Could not write configuration", err)
		}
		if jsonOutput() {
			return printJSON(cmd.OutOrStdout(), map[string]string{"path": path})
		}
		ui.NewPrinter(cmd.OutOrStdout()).PrintSuccess("Configuration written", map[string]string{"Path": path})
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file location",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolvedConfigPath()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

func resolvedConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.GetConfigPath()
}
