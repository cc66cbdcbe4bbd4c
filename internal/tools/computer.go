package tools

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// OpenApplication launches a desktop application by name using the
// platform's launcher.
func OpenApplication(ctx context.Context, appName string) error {
	appName = strings.TrimSpace(appName)
	if appName == "" {
		return fmt.Errorf("app_name is required")
	}

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", "-a", appName)
	case "windows":
		cmd = exec.CommandContext(ctx, "cmd", "/c", "start", "", appName)
	default:
		// Linux: try the name directly as an executable.
		cmd = exec.CommandContext(ctx, appName)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch %q: %w", appName, err)
	}
	// Detach: the app outlives the tool call.
	go func() { _ = cmd.Wait() }()
	return nil
}

// OpenURL opens a URL in the default browser.
func OpenURL(ctx context.Context, url string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return fmt.Errorf("url is required")
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "https://" + url
	}

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", url)
	case "windows":
		cmd = exec.CommandContext(ctx, "cmd", "/c", "start", "", url)
	default:
		cmd = exec.CommandContext(ctx, "xdg-open", url)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("open %q: %w", url, err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}
