package commands

import (
	"fmt"
	"time"

	"github.com/pterm/pterm"
)

// DeviceTableData returns the display table for one device, with bold ID.
func DeviceTableData(id string, device map[string]any) pterm.TableData {
	return pterm.TableData{
		[]string{pterm.Bold.Sprint("ID"), pterm.Bold.Sprint(id)},
		[]string{"Name", fmt.Sprintf("%v", device["name"])},
		[]string{"Location", fmt.Sprintf("%v", device["location"])},
		[]string{"Kind", fmt.Sprintf("%v", device["kind"])},
		[]string{"Resolved", fmt.Sprintf("%v", device["resolved"])},
	}
}

// DeviceParseable returns the parseable key=value string for a device.
func DeviceParseable(id string, device map[string]any) string {
	return fmt.Sprintf(
		"id=%q name=%q location=%q kind=%q resolved=%v",
		id,
		device["name"],
		device["location"],
		device["kind"],
		device["resolved"],
	)
}

// ResultParseable returns the parseable key=value string for one actuation
// result.
func ResultParseable(result map[string]any) string {
	errStr, _ := result["error"].(string)
	return fmt.Sprintf(
		"device_id=%q name=%q requested_state=%v outcome=%q error=%q",
		result["device_id"],
		result["name"],
		result["requested_state"],
		result["outcome"],
		errStr,
	)
}

// formatTimeForDisplay handles zero times gracefully for display.
func formatTimeForDisplay(t time.Time) string {
	if t.IsZero() || t.Unix() <= 0 {
		return "Never"
	}
	return t.Format(time.RFC1123)
}

// parseTimeField pulls an RFC3339 timestamp out of a decoded JSON map.
func parseTimeField(m map[string]any, key string) time.Time {
	s, _ := m[key].(string)
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
