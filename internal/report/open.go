package report

import (
	"fmt"
	"os/exec"
	"runtime"

	applog "apptsheet/internal/log"
)

// OpenInDefaultApp opens the given artifact with the OS default
// application. Best-effort: a failure is logged by the caller, never
// fatal.
func OpenInDefaultApp(path string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", "", path)
	default:
		cmd = exec.Command("xdg-open", path)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("report: open %s: %w", path, err)
	}
	applog.Debug("artifact opened in default app", "path", path)
	return nil
}
