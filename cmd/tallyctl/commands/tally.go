package commands

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/tallyd/pkg/client"
)

// NewTallyCommand creates the tally command
func NewTallyCommand(logger *slog.Logger) *cobra.Command {
	var parseable bool
	cmd := &cobra.Command{
		Use:   "tally [on|off]",
		Short: "Drive the whole tally fleet to a state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := cmd.Context().Value(ClientContextKey).(client.Interface)

			var on bool
			switch strings.ToLower(args[0]) {
			case "on", "true":
				on = true
			case "off", "false":
				on = false
			default:
				parsed, err := strconv.ParseBool(args[0])
				if err != nil {
					return fmt.Errorf("invalid state %q: must be on or off", args[0])
				}
				on = parsed
			}

			batch, err := c.SetTally(on)
			if err != nil {
				return fmt.Errorf("failed to set tally: %w", err)
			}

			results, _ := batch["results"].([]any)

			if parseable {
				for _, r := range results {
					if m, ok := r.(map[string]any); ok {
						fmt.Println(ResultParseable(m))
					}
				}
				return nil
			}

			failed := 0
			table := pterm.TableData{{"Device", "Name", "Outcome", "Error"}}
			for _, r := range results {
				m, ok := r.(map[string]any)
				if !ok {
					continue
				}
				outcome, _ := m["outcome"].(string)
				if outcome != "success" {
					failed++
				}
				errStr, _ := m["error"].(string)
				table = append(table, []string{
					fmt.Sprintf("%v", m["device_id"]),
					fmt.Sprintf("%v", m["name"]),
					outcome,
					errStr,
				})
			}
			pterm.DefaultTable.WithHasHeader().WithData(table).Render()

			if failed > 0 {
				pterm.Warning.Printf("Tally %s: %d of %d device(s) failed\n", onOff(on), failed, len(results))
				return nil
			}
			pterm.Success.Printf("Tally %s: all %d device(s) updated\n", onOff(on), len(results))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&parseable, "parseable", "p", false, "Output in parseable format (key=value)")
	return cmd
}

// NewStatusCommand creates the status command
func NewStatusCommand(logger *slog.Logger) *cobra.Command {
	var parseable bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the daemon's transport and fleet status",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := cmd.Context().Value(ClientContextKey).(client.Interface)
			status, err := c.Status()
			if err != nil {
				return fmt.Errorf("failed to get status: %w", err)
			}

			transport, _ := status["transport"].(map[string]any)
			devices, _ := status["devices"].(map[string]any)

			if parseable {
				fmt.Printf("play_active=%v record_active=%v active=%v pending=%v\n",
					transport["play_active"], transport["record_active"],
					transport["active"], transport["pending"])
				ids := make([]string, 0, len(devices))
				for id := range devices {
					ids = append(ids, id)
				}
				sort.Strings(ids)
				for _, id := range ids {
					if m, ok := devices[id].(map[string]any); ok {
						fmt.Println(DeviceParseable(id, m))
					}
				}
				return nil
			}

			table := pterm.TableData{
				[]string{pterm.Bold.Sprint("Transport"), ""},
				[]string{"Play", fmt.Sprintf("%v", transport["play_active"])},
				[]string{"Record", fmt.Sprintf("%v", transport["record_active"])},
				[]string{"Tally", fmt.Sprintf("%v", transport["active"])},
				[]string{"Pending", fmt.Sprintf("%v", transport["pending"])},
			}
			pterm.DefaultTable.WithData(table).Render()
			pterm.Println()

			if batch, ok := status["last_batch"].(map[string]any); ok {
				results, _ := batch["results"].([]any)
				pterm.Info.Printf("Last batch: generation %v, target %v, %d result(s)\n",
					batch["generation"], batch["target"], len(results))
			}

			ids := make([]string, 0, len(devices))
			for id := range devices {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			for _, id := range ids {
				if m, ok := devices[id].(map[string]any); ok {
					pterm.DefaultTable.WithData(DeviceTableData(id, m)).Render()
					pterm.Println()
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&parseable, "parseable", "p", false, "Output in parseable format (key=value)")
	return cmd
}

// NewLogLevelCommand creates the log-level command
func NewLogLevelCommand(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log-level [level]",
		Short: "Get or set the daemon's log level",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := cmd.Context().Value(ClientContextKey).(client.Interface)

			if len(args) == 0 {
				level, err := c.GetLogLevel()
				if err != nil {
					return fmt.Errorf("failed to get log level: %w", err)
				}
				fmt.Println(level)
				return nil
			}

			level := strings.ToLower(args[0])
			if err := c.SetLogLevel(level); err != nil {
				return fmt.Errorf("failed to set log level: %w", err)
			}
			pterm.Success.Printf("Log level set to %s\n", level)
			return nil
		},
	}
	return cmd
}
