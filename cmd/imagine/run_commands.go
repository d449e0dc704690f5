package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/PhucHuwu/Imagine-IV/internal/ipc"
)

func newStartCommand(ctx *commandContext) *cobra.Command {
	var mode string
	var count int

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a generation batch",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			if strings.TrimSpace(mode) == "" && cfg != nil {
				mode = cfg.Generation.Mode
			}
			if count <= 0 && cfg != nil {
				count = cfg.Generation.BatchSize
			}

			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.StartRun(mode, count)
				if err != nil {
					return err
				}
				if !resp.Started {
					if strings.TrimSpace(resp.Message) != "" {
						return errors.New(resp.Message)
					}
					return errors.New("daemon rejected the batch")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Started %s batch of %d\n", mode, count)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&mode, "mode", "m", "", "Generation mode: image, video6s, or video12s")
	cmd.Flags().IntVarP(&count, "count", "n", 0, "Number of items to generate")
	return cmd
}

func newStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Cancel the active batch",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.StopRun(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Stop requested; workers are shutting down")
				return nil
			})
		},
	}
}

func newConfirmLoginCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "confirm-login <worker>",
		Short: "Release a worker waiting for manual browser login",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			worker, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("worker must be a number: %q", args[0])
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ConfirmLogin(worker)
				if err != nil {
					return err
				}
				if !resp.Confirmed {
					if strings.TrimSpace(resp.Message) != "" {
						return errors.New(resp.Message)
					}
					return fmt.Errorf("worker %d was not waiting for login", worker)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Worker %d confirmed\n", worker)
				return nil
			})
		},
	}
}
