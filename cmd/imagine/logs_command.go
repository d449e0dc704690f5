package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/PhucHuwu/Imagine-IV/internal/ipc"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var limit int

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent daemon log events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				out := cmd.OutOrStdout()

				resp, err := client.LogTail(ipc.LogTailRequest{Limit: limit})
				if err != nil {
					return err
				}
				printLogEvents(out, resp.Events)
				if !follow {
					return nil
				}

				cursor := resp.Next
				for {
					select {
					case <-cmd.Context().Done():
						return cmd.Context().Err()
					default:
					}
					resp, err := client.LogTail(ipc.LogTailRequest{Since: cursor, Limit: limit, Wait: true})
					if err != nil {
						return err
					}
					printLogEvents(out, resp.Events)
					cursor = resp.Next
				}
			})
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep streaming new events")
	cmd.Flags().IntVarP(&limit, "limit", "n", 100, "Maximum events per fetch")
	return cmd
}

func printLogEvents(out io.Writer, events []ipc.LogEvent) {
	for _, event := range events {
		var b strings.Builder
		b.WriteString(event.Timestamp.Local().Format(time.TimeOnly))
		b.WriteByte(' ')
		b.WriteString(strings.ToUpper(event.Level))
		if event.Component != "" {
			b.WriteString(" [")
			b.WriteString(event.Component)
			b.WriteByte(']')
		}
		b.WriteByte(' ')
		b.WriteString(event.Message)
		if event.WorkerID > 0 {
			fmt.Fprintf(&b, " worker=%d", event.WorkerID)
		}
		if event.ItemID != "" {
			fmt.Fprintf(&b, " item=%s", event.ItemID)
		}
		if event.Stage != "" {
			fmt.Fprintf(&b, " stage=%s", event.Stage)
		}
		for _, key := range sortedFieldKeys(event.Fields) {
			fmt.Fprintf(&b, " %s=%s", key, event.Fields[key])
		}
		fmt.Fprintln(out, b.String())
	}
}

func sortedFieldKeys(fields map[string]string) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
