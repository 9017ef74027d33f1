package shared

import (
	"fmt"
	"os/exec"
	"runtime"
)

var getRuntime = func() string { return runtime.GOOS }

// browserCommand returns the launcher for goos, or false when the platform has none.
func browserCommand(goos, url string) (*exec.Cmd, bool) {
	switch goos {
	case "darwin":
		return exec.Command("open", url), true
	case "linux", "freebsd", "openbsd", "netbsd":
		return exec.Command("xdg-open", url), true
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url), true
	}
	return nil, false
}

// OpenBrowser hands url to the desktop's default browser without waiting for it.
func OpenBrowser(url string) error {
	goos := getRuntime()
	cmd, ok := browserCommand(goos, url)
	if !ok {
		return fmt.Errorf("%w: no browser launcher for %s", ErrServiceUnavailable, goos)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	go cmd.Wait()
	return nil
}
