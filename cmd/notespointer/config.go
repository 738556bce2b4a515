package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/nupi-ai/notespointer/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCommand() *cobra.Command {
	configCmd := &cobra.Command{
		Use:           "config",
		Short:         "Configuration management commands",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	configInitCmd := &cobra.Command{
		Use:           "init",
		Short:         "Write the default configuration file",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          configInit,
	}
	configInitCmd.Flags().Bool("force", false, "Overwrite an existing file")

	configShowCmd := &cobra.Command{
		Use:           "show",
		Short:         "Show the effective configuration",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          configShow,
	}

	configCmd.AddCommand(configInitCmd, configShowCmd)
	return configCmd
}

func configInit(cmd *cobra.Command, _ []string) error {
	out := newOutputFormatter(cmd)

	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		paths, err := config.EnsureDirs()
		if err != nil {
			return out.Error("Failed to prepare config directory", err)
		}
		path = paths.Config
	}
	path = config.ExpandPath(path)

	force, _ := cmd.Flags().GetBool("force")
	if _, err := os.Stat(path); err == nil && !force {
		return out.Error(fmt.Sprintf("%s already exists (use --force to overwrite)", path), nil)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return out.Error("Failed to inspect config file", err)
	}

	if err := config.Save(path, config.Defaults()); err != nil {
		return out.Error("Failed to write config", err)
	}
	return out.Success("Wrote "+path, map[string]any{"path": path})
}

func configShow(cmd *cobra.Command, _ []string) error {
	out := newOutputFormatter(cmd)
	cfg, err := loadConfig(cmd)
	if err != nil {
		return out.Error("Failed to load config", err)
	}
	if out.jsonMode {
		return out.Print(cfg)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return out.Error("Failed to encode config", err)
	}
	return out.Print(string(data))
}
