package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/PhucHuwu/Imagine-IV/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand(ctx))

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			}

			written, err := config.CreateSample(target)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", written)
			fmt.Fprintln(out, "Edit the file (or export OPENROUTER_API_KEY) before starting a generated-prompt batch.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	return cmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if ctx.configFlag != nil {
				path = strings.TrimSpace(*ctx.configFlag)
			}
			cfg, resolvedPath, exists, err := config.Load(path)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if exists {
				fmt.Fprintf(out, "Configuration file: %s\n", resolvedPath)
			} else {
				fmt.Fprintln(out, "No configuration file found; showing built-in defaults")
			}
			fmt.Fprintln(out)

			rows := [][]string{
				{"generation.mode", cfg.Generation.Mode},
				{"generation.thread_count", strconv.Itoa(cfg.Generation.ThreadCount)},
				{"generation.batch_size", strconv.Itoa(cfg.Generation.BatchSize)},
				{"generation.images_per_item", strconv.Itoa(cfg.Generation.ImagesPerItem)},
				{"generation.timeout_seconds", strconv.Itoa(cfg.Generation.TimeoutSeconds)},
				{"browser.driver_command", cfg.Browser.DriverCommand},
				{"browser.automation_command", cfg.Browser.AutomationCommand},
				{"browser.placement", cfg.Browser.Placement},
				{"browser.manual_login", yesNo(cfg.Browser.ManualLogin)},
				{"prompts.source", cfg.Prompts.Source},
				{"openrouter.model", cfg.OpenRouter.Model},
				{"openrouter.api_key", maskSecret(cfg.OpenRouter.APIKey)},
				{"media.ffmpeg_command", cfg.Media.FFmpegCommand},
				{"media.ffprobe_command", cfg.Media.FFprobeCommand},
				{"paths.images_dir", cfg.Paths.ImagesDir},
				{"paths.videos_dir", cfg.Paths.VideosDir},
				{"paths.profiles_dir", cfg.Paths.ProfilesDir},
				{"paths.log_dir", cfg.Paths.LogDir},
				{"paths.socket_path", cfg.Paths.SocketPath},
			}
			fmt.Fprintln(out, renderTable([]string{"Setting", "Value"}, rows, nil))
			return nil
		},
	}
}

func maskSecret(value string) string {
	if value == "" {
		return "(unset)"
	}
	return "(set)"
}
