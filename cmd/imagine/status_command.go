package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/PhucHuwu/Imagine-IV/internal/ipc"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon, batch, and dependency status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Status()
				if err != nil {
					return err
				}
				printStatus(cmd.OutOrStdout(), resp)
				return nil
			})
		},
	}
}

func printStatus(out io.Writer, resp *ipc.StatusResponse) {
	colorize := shouldColorize(out)

	fmt.Fprintf(out, "Daemon running: %s (pid %d)\n", yesNo(resp.Running), resp.PID)
	fmt.Fprintf(out, "Database:       %s\n", resp.DBPath)
	fmt.Fprintf(out, "Lock file:      %s\n", resp.LockPath)
	fmt.Fprintln(out)

	if resp.RunActive {
		fmt.Fprintf(out, "Batch %s (%s) started %s\n",
			resp.RunID, resp.Mode, resp.StartedAt.Local().Format(time.DateTime))
		fmt.Fprintf(out, "Requested %d, remaining %d, done %d, skipped %d\n",
			resp.Requested, resp.Remaining, resp.Done, resp.Skipped)
		for _, kind := range sortedKeys(resp.SkippedKinds) {
			fmt.Fprintf(out, "  skipped (%s): %d\n", kind, resp.SkippedKinds[kind])
		}
	} else {
		fmt.Fprintln(out, "No batch running")
		if resp.Done > 0 || resp.Skipped > 0 {
			fmt.Fprintf(out, "Last totals: done %d, skipped %d\n", resp.Done, resp.Skipped)
		}
	}

	if len(resp.Workers) > 0 {
		rows := make([][]string, 0, len(resp.Workers))
		for _, w := range resp.Workers {
			rows = append(rows, []string{
				strconv.Itoa(w.WorkerID), w.State, w.ItemID, w.Detail,
			})
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, renderTable(
			[]string{"Worker", "State", "Item", "Detail"},
			rows,
			[]text.Align{text.AlignRight, text.AlignLeft, text.AlignLeft, text.AlignLeft},
		))
	}

	if len(resp.Dependencies) > 0 {
		rows := make([][]string, 0, len(resp.Dependencies))
		for _, dep := range resp.Dependencies {
			rows = append(rows, []string{
				dep.Name, dep.Command, availabilityCell(dep.Available, colorize), dep.Detail,
			})
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, renderTable(
			[]string{"Dependency", "Command", "Available", "Detail"},
			rows,
			nil,
		))
	}
}

func availabilityCell(available bool, colorize bool) string {
	label := yesNo(available)
	if !colorize {
		return label
	}
	if available {
		return text.FgGreen.Sprint(label)
	}
	return text.FgRed.Sprint(label)
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func shouldColorize(out io.Writer) bool {
	file, ok := out.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
