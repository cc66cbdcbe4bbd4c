package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Browser drives a Chromium instance for the stealth_browser tool. A
// fresh browser is launched per call and torn down afterwards so a
// crashed page never wedges the registry.
type Browser struct {
	logger *slog.Logger
}

// NewBrowser creates the browser controller.
func NewBrowser(logger *slog.Logger) *Browser {
	return &Browser{logger: logger}
}

// Visit opens a URL and returns the page title plus a text excerpt.
// Launch flags suppress the automation banner and the
// AutomationControlled blink feature that trips basic bot detection.
func (b *Browser) Visit(ctx context.Context, url string, headless bool) (string, error) {
	if strings.TrimSpace(url) == "" {
		return "", fmt.Errorf("url is required")
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "https://" + url
	}

	l := launcher.New().
		Headless(headless).
		Set("disable-blink-features", "AutomationControlled").
		Delete("enable-automation")

	controlURL, err := l.Launch()
	if err != nil {
		return "", fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return "", fmt.Errorf("connect browser: %w", err)
	}
	defer func() {
		if err := browser.Close(); err != nil {
			b.logger.Debug("browser close failed", "error", err)
		}
		l.Kill()
	}()

	page, err := browser.Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return "", fmt.Errorf("open page: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return "", fmt.Errorf("wait for page load: %w", err)
	}

	info, err := page.Info()
	if err != nil {
		return "", fmt.Errorf("page info: %w", err)
	}

	body, err := page.Element("body")
	if err != nil {
		return fmt.Sprintf("Opened %s (title: %s). Page has no readable body.", url, info.Title), nil
	}
	text, err := body.Text()
	if err != nil {
		text = ""
	}

	const excerptCap = 4000
	text = strings.TrimSpace(text)
	if len(text) > excerptCap {
		text = text[:excerptCap] + "\n[... truncated ...]"
	}

	b.logger.Debug("browser visit complete", "url", url, "title", info.Title, "chars", len(text))
	return fmt.Sprintf("Title: %s\nURL: %s\n\n%s", info.Title, info.URL, text), nil
}
