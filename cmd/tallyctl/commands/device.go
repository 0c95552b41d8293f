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

// NewDeviceCommand creates the device command
func NewDeviceCommand(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "device",
		Short: "Manage individual tally devices",
	}

	cmd.AddCommand(
		newDeviceListCommand(),
		newDeviceGetCommand(),
		newDeviceSetCommand(),
		newDeviceRefreshCommand(),
	)

	return cmd
}

// selectDevice prompts for a device when no ID argument was given.
func selectDevice(c client.Interface) (string, error) {
	devices, err := c.GetDevices()
	if err != nil {
		return "", fmt.Errorf("failed to get devices: %w", err)
	}
	if len(devices) == 0 {
		return "", fmt.Errorf("no devices configured")
	}

	ids := make([]string, 0, len(devices))
	for id := range devices {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	options := make([]string, len(ids))
	for i, id := range ids {
		deviceMap := devices[id].(map[string]any)
		options[i] = fmt.Sprintf("%s (%v)", id, deviceMap["name"])
	}

	selected, err := pterm.DefaultInteractiveSelect.
		WithOptions(options).
		Show("Select a device")
	if err != nil {
		return "", fmt.Errorf("failed to select device: %w", err)
	}
	return strings.Split(selected, " (")[0], nil
}

// newDeviceListCommand creates the device list command
func newDeviceListCommand() *cobra.Command {
	var parseable bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List configured devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := cmd.Context().Value(ClientContextKey).(client.Interface)
			devices, err := c.GetDevices()
			if err != nil {
				return fmt.Errorf("failed to get devices: %w", err)
			}

			if len(devices) == 0 {
				if parseable {
					return nil
				}
				pterm.Info.Println("No devices configured")
				return nil
			}

			// Stable output order
			ids := make([]string, 0, len(devices))
			for id := range devices {
				ids = append(ids, id)
			}
			sort.Strings(ids)

			if parseable {
				for _, id := range ids {
					deviceMap := devices[id].(map[string]any)
					fmt.Println(DeviceParseable(id, deviceMap))
				}
				return nil
			}

			for _, id := range ids {
				deviceMap := devices[id].(map[string]any)
				pterm.DefaultTable.WithData(DeviceTableData(id, deviceMap)).Render()
				pterm.Println()
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&parseable, "parseable", "p", false, "Output in parseable format (key=value)")
	return cmd
}

// newDeviceGetCommand creates the device get command
func newDeviceGetCommand() *cobra.Command {
	var parseable bool
	cmd := &cobra.Command{
		Use:   "get [id]",
		Short: "Get information about a device",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := cmd.Context().Value(ClientContextKey).(client.Interface)

			var deviceID string
			if len(args) > 0 {
				deviceID = args[0]
			} else {
				var err error
				deviceID, err = selectDevice(c)
				if err != nil {
					return err
				}
			}

			device, err := c.GetDevice(deviceID)
			if err != nil {
				return fmt.Errorf("failed to get device: %w", err)
			}

			if parseable {
				fmt.Println(DeviceParseable(deviceID, device))
				return nil
			}
			pterm.DefaultTable.WithData(DeviceTableData(deviceID, device)).Render()
			return nil
		},
	}
	cmd.Flags().BoolVarP(&parseable, "parseable", "p", false, "Output in parseable format (key=value)")
	return cmd
}

// newDeviceSetCommand creates the device set command
func newDeviceSetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set [id] [on|off]",
		Short: "Set a device's power state",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := cmd.Context().Value(ClientContextKey).(client.Interface)

			var deviceID string
			if len(args) > 0 {
				deviceID = args[0]
			} else {
				var err error
				deviceID, err = selectDevice(c)
				if err != nil {
					return err
				}
			}

			var on bool
			if len(args) > 1 {
				switch strings.ToLower(args[1]) {
				case "on", "true":
					on = true
				case "off", "false":
					on = false
				default:
					parsed, err := strconv.ParseBool(args[1])
					if err != nil {
						return fmt.Errorf("invalid state %q: must be on, off, true, or false", args[1])
					}
					on = parsed
				}
			} else {
				selected, err := pterm.DefaultInteractiveSelect.
					WithOptions([]string{"On", "Off"}).
					Show("Select power state")
				if err != nil {
					return fmt.Errorf("failed to get power state: %w", err)
				}
				on = selected == "On"
			}

			result, err := c.SetDeviceState(deviceID, on)
			if err != nil {
				return fmt.Errorf("failed to set device state: %w", err)
			}

			if outcome, _ := result["outcome"].(string); outcome != "" && outcome != "success" {
				errStr, _ := result["error"].(string)
				return fmt.Errorf("device command failed (%s): %s", outcome, errStr)
			}

			pterm.Success.Printf("Device %s switched %s\n", deviceID, onOff(on))
			return nil
		},
	}
	return cmd
}

// newDeviceRefreshCommand creates the device refresh command
func newDeviceRefreshCommand() *cobra.Command {
	var parseable bool
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Force a discovery sweep and show the refreshed fleet",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := cmd.Context().Value(ClientContextKey).(client.Interface)
			devices, err := c.RefreshDevices()
			if err != nil {
				return fmt.Errorf("failed to refresh devices: %w", err)
			}

			ids := make([]string, 0, len(devices))
			for id := range devices {
				ids = append(ids, id)
			}
			sort.Strings(ids)

			if parseable {
				for _, id := range ids {
					deviceMap := devices[id].(map[string]any)
					fmt.Println(DeviceParseable(id, deviceMap))
				}
				return nil
			}

			pterm.Success.Printf("Discovery sweep complete, %d device(s) configured\n", len(devices))
			for _, id := range ids {
				deviceMap := devices[id].(map[string]any)
				pterm.DefaultTable.WithData(DeviceTableData(id, deviceMap)).Render()
				pterm.Println()
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&parseable, "parseable", "p", false, "Output in parseable format (key=value)")
	return cmd
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
