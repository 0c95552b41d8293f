package commands

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/tallyd/pkg/client"
)

// NewAPIKeyCommand creates the apikey command group.
func NewAPIKeyCommand(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "api-key",
		Short:   "Manage API keys for tallyd",
		Aliases: []string{"api"},
	}

	cmd.AddCommand(
		newAPIKeyListCommand(logger),
		newAPIKeyAddCommand(logger),
		newAPIKeyDeleteCommand(logger),
		newAPIKeySetEnabledCommand(logger),
	)

	return cmd
}

func obfuscateAPIKey(key string) string {
	if len(key) > 8 {
		return key[:4] + "..." + key[len(key)-4:]
	}
	return key
}

func newAPIKeyListCommand(logger *slog.Logger) *cobra.Command {
	var parseable bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient, ok := cmd.Context().Value(ClientContextKey).(client.Interface)
			if !ok {
				return fmt.Errorf("client not found in context")
			}

			keys, err := apiClient.ListAPIKeys()
			if err != nil {
				return fmt.Errorf("failed to list API keys: %w", err)
			}

			if len(keys) == 0 {
				pterm.Info.Println("No API keys found.")
				return nil
			}

			if parseable {
				for _, keyMap := range keys {
					keyStr, _ := keyMap["key"].(string)
					name, _ := keyMap["name"].(string)
					disabledBool, _ := keyMap["disabled"].(bool)
					enabledBool := !disabledBool

					createdAt := parseTimeField(keyMap, "created_at")
					expiresAt := parseTimeField(keyMap, "expires_at")
					lastUsedAt := parseTimeField(keyMap, "last_used_at")

					createdAtOutput := ""
					if !createdAt.IsZero() {
						createdAtOutput = createdAt.Format(time.RFC3339Nano)
					}
					expiresAtOutput := ""
					if !expiresAt.IsZero() {
						expiresAtOutput = expiresAt.Format(time.RFC3339Nano)
					}
					lastUsedAtOutput := ""
					if !lastUsedAt.IsZero() {
						lastUsedAtOutput = lastUsedAt.Format(time.RFC3339Nano)
					}

					fmt.Printf("name=%s key=%s created_at=%s expires_at=%s last_used_at=%s enabled=%t\n",
						strconv.Quote(name), strconv.Quote(keyStr), createdAtOutput, expiresAtOutput, lastUsedAtOutput, enabledBool)
				}
				return nil
			}

			table := pterm.TableData{{"Name", "Key (Partial)", "Created At", "Expires At", "Last Used", "Enabled"}}
			for _, keyMap := range keys {
				keyStr, _ := keyMap["key"].(string)
				name, _ := keyMap["name"].(string)
				disabledBool, _ := keyMap["disabled"].(bool)
				enabledBool := !disabledBool

				table = append(table, []string{
					name,
					obfuscateAPIKey(keyStr),
					formatTimeForDisplay(parseTimeField(keyMap, "created_at")),
					formatTimeForDisplay(parseTimeField(keyMap, "expires_at")),
					formatTimeForDisplay(parseTimeField(keyMap, "last_used_at")),
					strconv.FormatBool(enabledBool),
				})
			}
			pterm.DefaultTable.WithHasHeader().WithData(table).Render()
			return nil
		},
	}
	cmd.Flags().BoolVarP(&parseable, "parseable", "p", false, "Output in parseable format")
	return cmd
}

func newAPIKeyAddCommand(logger *slog.Logger) *cobra.Command {
	var name string
	var expiresIn string

	cmd := &cobra.Command{
		Use:   "add [name] [duration]",
		Short: "Add a new API key. Duration can be like 24h, 720h, or 0 for never.",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient, ok := cmd.Context().Value(ClientContextKey).(client.Interface)
			if !ok {
				return fmt.Errorf("client not found in context")
			}

			// Get name: from arg 1, then flag, then prompt
			if len(args) > 0 {
				name = args[0]
			}
			if name == "" {
				var err error
				name, err = pterm.DefaultInteractiveTextInput.WithMultiLine(false).Show("Enter a friendly name for the API key")
				if err != nil {
					return fmt.Errorf("failed to get API key name: %w", err)
				}
				if name == "" {
					return fmt.Errorf("API key name cannot be empty")
				}
			}

			// Get duration: from arg 2, then flag, then prompt
			if len(args) > 1 {
				expiresIn = args[1]
			}
			if expiresIn == "" {
				var err error
				expiresIn, err = pterm.DefaultInteractiveTextInput.
					WithMultiLine(false).
					WithDefaultText("Enter duration until key expires (e.g., 24h, 720h, 0 for never). Leave empty or 0 for no expiry.").
					Show()
				if err != nil {
					return fmt.Errorf("failed to get expiry duration: %w", err)
				}
			}

			if expiresIn == "0" {
				expiresIn = ""
			}
			if expiresIn != "" {
				if _, err := time.ParseDuration(expiresIn); err != nil {
					return fmt.Errorf("invalid duration format %q. Use formats like 300s, 1.5h, 24h, or 0 for never: %w", expiresIn, err)
				}
			}

			createdKey, err := apiClient.AddAPIKey(name, expiresIn)
			if err != nil {
				return fmt.Errorf("failed to add API key: %w", err)
			}

			keyStr, _ := createdKey["key"].(string)
			keyName, _ := createdKey["name"].(string)
			expiresAt := parseTimeField(createdKey, "expires_at")

			pterm.Success.Println("API Key created successfully!")
			pterm.Info.Println("  Name:    ", keyName)
			pterm.Warning.Println("  Key:     ", keyStr, "(Store this securely! It will not be shown again.)")
			if !expiresAt.IsZero() && expiresAt.Unix() > 0 {
				pterm.Info.Println("  Expires: ", expiresAt.Format(time.RFC1123))
			} else {
				pterm.Info.Println("  Expires: Never")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Friendly name for the API key (overridden by positional argument)")
	cmd.Flags().StringVar(&expiresIn, "expires-in", "", "Duration until key expires (e.g., 720h, 0 or empty for never). Overridden by positional argument.")
	return cmd
}

func newAPIKeyDeleteCommand(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete [key_string]",
		Short: "Delete an API key",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient, ok := cmd.Context().Value(ClientContextKey).(client.Interface)
			if !ok {
				return fmt.Errorf("client not found in context")
			}

			keyToDelete := ""
			if len(args) > 0 {
				keyToDelete = args[0]
			} else {
				// No key provided, fetch and let user select
				keys, err := apiClient.ListAPIKeys()
				if err != nil {
					return fmt.Errorf("failed to list API keys for selection: %w", err)
				}
				if len(keys) == 0 {
					pterm.Info.Println("No API keys found to delete.")
					return nil
				}

				options := []string{}
				keyMapForSelection := make(map[string]string)
				for _, apiKey := range keys {
					name, _ := apiKey["name"].(string)
					fullKey, _ := apiKey["key"].(string)
					displayString := fmt.Sprintf("%s (%s)", name, obfuscateAPIKey(fullKey))
					options = append(options, displayString)
					keyMapForSelection[displayString] = fullKey
				}

				selectedOption, err := pterm.DefaultInteractiveSelect.
					WithDefaultText("Select API key to delete").
					WithOptions(options).
					Show()
				if err != nil {
					return fmt.Errorf("API key selection failed: %w", err)
				}
				keyToDelete = keyMapForSelection[selectedOption]
			}

			if keyToDelete == "" {
				return fmt.Errorf("no API key specified or selected for deletion")
			}

			confirm, _ := pterm.DefaultInteractiveConfirm.
				WithDefaultText(fmt.Sprintf("Are you sure you want to delete API key %s?", obfuscateAPIKey(keyToDelete))).
				WithDefaultValue(false).
				Show()

			if !confirm {
				pterm.Info.Println("API key deletion cancelled.")
				return nil
			}

			if err := apiClient.DeleteAPIKey(keyToDelete); err != nil {
				return fmt.Errorf("failed to delete API key: %w", err)
			}

			pterm.Success.Printf("API Key '%s' deleted successfully.\n", obfuscateAPIKey(keyToDelete))
			return nil
		},
	}
	return cmd
}

func newAPIKeySetEnabledCommand(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-enabled [key_or_name] [true|false]",
		Short: "Set the enabled status of an API key (true for enabled, false for disabled).",
		Long:  "Set the enabled status of an API key. \nIf key_or_name is not provided, an interactive selection will be shown. \nIf the boolean status (true/false or enabled/disabled) is not provided, an interactive selection for enabled/disabled will be shown.",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient, ok := cmd.Context().Value(ClientContextKey).(client.Interface)
			if !ok {
				return fmt.Errorf("client not found in context")
			}

			var keyToUpdate string
			var desiredEnabledState bool
			var statusArgProvided bool

			if len(args) > 0 {
				keyToUpdate = args[0]
			}

			if len(args) > 1 {
				statusStr := strings.ToLower(args[1])
				switch statusStr {
				case "true", "enabled":
					desiredEnabledState = true
					statusArgProvided = true
				case "false", "disabled":
					desiredEnabledState = false
					statusArgProvided = true
				default:
					return fmt.Errorf("invalid status argument: %s. Must be true, false, enabled, or disabled", args[1])
				}
			}

			if keyToUpdate == "" {
				keys, err := apiClient.ListAPIKeys()
				if err != nil {
					return fmt.Errorf("failed to list API keys for selection: %w", err)
				}
				if len(keys) == 0 {
					pterm.Info.Println("No API keys found.")
					return nil
				}
				options := []string{}
				keyMapForSelection := make(map[string]string)
				for _, apiKey := range keys {
					name, _ := apiKey["name"].(string)
					fullKey, _ := apiKey["key"].(string)
					disabledStatus, _ := apiKey["disabled"].(bool)
					displayString := fmt.Sprintf("%s (%s) - Enabled: %t", name, obfuscateAPIKey(fullKey), !disabledStatus)
					options = append(options, displayString)
					keyMapForSelection[displayString] = fullKey
				}
				selectedOption, err := pterm.DefaultInteractiveSelect.WithOptions(options).WithDefaultText("Select API key to update").Show()
				if err != nil {
					return fmt.Errorf("API key selection failed: %w", err)
				}
				keyToUpdate = keyMapForSelection[selectedOption]
			}

			if !statusArgProvided {
				statusOptions := []string{"Enabled", "Disabled"}
				selectedStatus, err := pterm.DefaultInteractiveSelect.WithOptions(statusOptions).WithDefaultText("Set API key status to").Show()
				if err != nil {
					return fmt.Errorf("status selection failed: %w", err)
				}
				desiredEnabledState = selectedStatus == "Enabled"
			}

			// The daemon stores the disabled flag, so invert the desired state.
			updatedKey, err := apiClient.SetAPIKeyDisabledStatus(keyToUpdate, !desiredEnabledState)
			if err != nil {
				return fmt.Errorf("failed to set API key enabled status: %w", err)
			}

			updatedName, _ := updatedKey["name"].(string)
			returnedDisabledStatus, _ := updatedKey["disabled"].(bool)

			pterm.Success.Printf("API key '%s' (%s) status set to: Enabled=%t\n", updatedName, obfuscateAPIKey(keyToUpdate), !returnedDisabledStatus)
			return nil
		},
	}
	return cmd
}
