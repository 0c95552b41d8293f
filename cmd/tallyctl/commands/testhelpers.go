package commands

import (
	"bytes"
	"io"
	"os"
	"regexp"

	"github.com/pterm/pterm"
)

// captureStdout captures stdout during the execution of f, disables pterm
// color, and strips ANSI codes from the output.
func captureStdout(f func()) string {
	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	// Save original pterm settings and default table writer
	oldPrintColor := pterm.PrintColor
	oldOutput := pterm.Output
	oldDefaultTableWriter := pterm.DefaultTable.Writer

	oldInfoWriter := pterm.Info.Writer
	oldSuccessWriter := pterm.Success.Writer
	oldWarningWriter := pterm.Warning.Writer
	oldErrorWriter := pterm.Error.Writer
	oldDebugWriter := pterm.Debug.Writer

	pterm.DisableColor()
	pterm.Output = true
	pterm.DefaultTable.Writer = w
	// pterm's default printers bind their writer at init, not os.Stdout at
	// print time, so the pipe swap above does not redirect them on its own.
	pterm.SetDefaultOutput(w)
	pterm.Info.Writer = w
	pterm.Success.Writer = w
	pterm.Warning.Writer = w
	pterm.Error.Writer = w
	pterm.Debug.Writer = w

	outC := make(chan string)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, r)
		outC <- buf.String()
	}()

	f()

	w.Close()
	os.Stdout = oldStdout

	// Restore pterm
	if oldPrintColor {
		pterm.EnableColor()
	}
	pterm.Output = oldOutput
	pterm.DefaultTable.Writer = oldDefaultTableWriter
	pterm.SetDefaultOutput(oldStdout)
	pterm.Info.Writer = oldInfoWriter
	pterm.Success.Writer = oldSuccessWriter
	pterm.Warning.Writer = oldWarningWriter
	pterm.Error.Writer = oldErrorWriter
	pterm.Debug.Writer = oldDebugWriter

	out := <-outC

	// Strip ANSI escape codes
	ansiRegex := regexp.MustCompile(`\x1b\[[0-9;]*m`)
	return ansiRegex.ReplaceAllString(out, "")
}
