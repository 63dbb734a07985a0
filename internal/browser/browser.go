package browser

import (
	"fmt"
	"os/exec"
	"runtime"
)

// Open opens a URL in the user's default browser, fire-and-forget. No
// response is read; whether the page actually loaded only shows up as the
// presence or absence of a callback report.
func Open(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("open browser: %w", err)
	}
	go cmd.Wait()
	return nil
}
