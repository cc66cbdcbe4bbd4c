package tools

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/Endsi3g/AI-Assistant-Computer/internal/events"
)

// dynamicExecTimeout caps a single dynamic tool invocation.
const dynamicExecTimeout = 30 * time.Second

// toolNameRe restricts dynamic tool names to snake_case identifiers.
var toolNameRe = regexp.MustCompile(`[^a-z0-9_]+`)

// packageRe extracts the package clause from a source unit.
var packageRe = regexp.MustCompile(`(?m)^package\s+(\w+)`)

// importRe matches single and grouped import paths.
var importRe = regexp.MustCompile(`(?m)^\s*(?:import\s+)?(?:\w+\s+)?"([^"]+)"`)

// DynamicTooler creates tools from Go source at runtime. Each unit is
// written to <dir>/<name>.go and interpreted with yaegi. A unit
// registers as a live tool when it exports ToolSpec (a map with
// description and parameters) and Execute(args map[string]any)
// (string, error); otherwise the source is kept on disk but stays
// unregistered.
type DynamicTooler struct {
	logger   *slog.Logger
	bus      *events.Bus
	dir      string
	registry *Registry

	mu sync.Mutex
}

// NewDynamicTooler creates the dynamic tool manager.
func NewDynamicTooler(logger *slog.Logger, bus *events.Bus, dir string, registry *Registry) *DynamicTooler {
	return &DynamicTooler{logger: logger, bus: bus, dir: dir, registry: registry}
}

// SanitizeName lowercases and strips a proposed tool name down to
// [a-z0-9_].
func SanitizeName(name string) string {
	s := toolNameRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "_")
	return strings.Trim(s, "_")
}

// Create stores a tool source unit and attempts to register it. The
// source is persisted even when registration fails, so a partially
// working unit can be inspected and fixed. The returned message says
// whether the tool went live.
func (d *DynamicTooler) Create(name, source, description string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	name = SanitizeName(name)
	if name == "" {
		return "", fmt.Errorf("tool name must contain letters, digits, or underscores")
	}
	if strings.TrimSpace(source) == "" {
		return "", fmt.Errorf("source is required")
	}

	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return "", fmt.Errorf("create tools dir: %w", err)
	}
	path := filepath.Join(d.dir, name+".go")
	if err := os.WriteFile(path, []byte(source), 0o644); err != nil {
		return "", fmt.Errorf("store source: %w", err)
	}

	if err := d.load(name, source, description); err != nil {
		d.bus.Emit(events.SourceTools, events.KindToolCreated, map[string]any{
			"tool": name, "registered": false,
		})
		return fmt.Sprintf("Source for %q stored at %s, but the tool is not registered: %v", name, path, err), nil
	}

	d.bus.Emit(events.SourceTools, events.KindToolCreated, map[string]any{
		"tool": name, "registered": true,
	})
	return fmt.Sprintf("Tool %q created and registered.", name), nil
}

// LoadAll scans the tool directory and registers every loadable unit.
// Returns the number of registered tools.
func (d *DynamicTooler) LoadAll() (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	entries, err := os.ReadDir(d.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read tools dir: %w", err)
	}

	loaded := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".go") {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".go")
		source, err := os.ReadFile(filepath.Join(d.dir, e.Name()))
		if err != nil {
			d.logger.Warn("skipping unreadable tool source", "file", e.Name(), "error", err)
			continue
		}
		if err := d.load(name, string(source), ""); err != nil {
			d.logger.Warn("dynamic tool failed to load", "tool", name, "error", err)
			continue
		}
		loaded++
	}
	return loaded, nil
}

// load interprets a source unit and registers the resulting tool.
// Caller holds d.mu.
func (d *DynamicTooler) load(name, source, fallbackDescription string) error {
	if err := checkImports(source); err != nil {
		return err
	}

	pkgMatch := packageRe.FindStringSubmatch(source)
	if pkgMatch == nil {
		return fmt.Errorf("source has no package clause")
	}
	pkg := pkgMatch[1]

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return fmt.Errorf("load interpreter stdlib: %w", err)
	}
	if _, err := i.Eval(source); err != nil {
		return fmt.Errorf("interpret source: %w", err)
	}

	execVal, err := i.Eval(pkg + ".Execute")
	if err != nil {
		return fmt.Errorf("missing export Execute(args map[string]any) (string, error)")
	}
	execute, ok := execVal.Interface().(func(map[string]any) (string, error))
	if !ok {
		return fmt.Errorf("Execute has wrong signature, want func(map[string]any) (string, error)")
	}

	description := fallbackDescription
	parameters := map[string]any{"type": "object", "properties": map[string]any{}}

	specVal, err := i.Eval(pkg + ".ToolSpec")
	if err != nil {
		return fmt.Errorf("missing export ToolSpec (map with description and parameters)")
	}
	if spec, ok := specVal.Interface().(map[string]any); ok {
		if desc, ok := spec["description"].(string); ok && desc != "" {
			description = desc
		}
		if params, ok := spec["parameters"].(map[string]any); ok {
			parameters = params
		}
	}
	if description == "" {
		description = "Dynamically created tool " + name
	}

	d.registry.Register(&Tool{
		Name:        name,
		Description: description,
		Parameters:  parameters,
		Elevated:    true,
		Handler:     wrapDynamic(name, execute),
	})

	d.logger.Info("dynamic tool registered", "tool", name)
	return nil
}

// wrapDynamic runs the interpreted function on a goroutine so a hung
// unit cannot stall the agent loop past the timeout.
func wrapDynamic(name string, execute func(map[string]any) (string, error)) func(context.Context, map[string]any) (string, error) {
	return func(ctx context.Context, args map[string]any) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, dynamicExecTimeout)
		defer cancel()

		type outcome struct {
			result string
			err    error
		}
		done := make(chan outcome, 1)
		go func() {
			defer func() {
				if rec := recover(); rec != nil {
					done <- outcome{err: fmt.Errorf("panic: %v", rec)}
				}
			}()
			result, err := execute(args)
			done <- outcome{result: result, err: err}
		}()

		select {
		case out := <-done:
			return out.result, out.err
		case <-ctx.Done():
			return "", fmt.Errorf("dynamic tool %q timed out", name)
		}
	}
}

// checkImports rejects any non-stdlib import. Dynamic units only get
// the standard library; a dotted first path segment means a remote
// module.
func checkImports(source string) error {
	for _, m := range importRe.FindAllStringSubmatch(source, -1) {
		path := m[1]
		first := path
		if idx := strings.IndexByte(path, '/'); idx > 0 {
			first = path[:idx]
		}
		if strings.Contains(first, ".") {
			return fmt.Errorf("import %q not allowed: only standard library imports are permitted", path)
		}
	}
	return nil
}
