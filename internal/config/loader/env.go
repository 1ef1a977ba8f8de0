package loader

import (
	"os"
	"strconv"
	"strings"
)

// EnvLoader loads configuration from environment variables.
type EnvLoader struct {
	prefix  string            // Environment variable prefix (e.g., "JSINSPECT_")
	mapping map[string]string // Env var -> config path
	environ func() []string
}

// NewEnvLoader creates a new environment variable loader.
// The prefix should include the trailing underscore (e.g., "JSINSPECT_").
func NewEnvLoader(prefix string) *EnvLoader {
	return &EnvLoader{
		prefix:  prefix,
		mapping: defaultEnvMapping(),
		environ: os.Environ,
	}
}

// NewEnvLoaderWithMapping creates a loader with custom environment variable
// mappings, reading variables from environ. Nil arguments select the defaults.
func NewEnvLoaderWithMapping(prefix string, mapping map[string]string, environ func() []string) *EnvLoader {
	if mapping == nil {
		mapping = defaultEnvMapping()
	}
	if environ == nil {
		environ = os.Environ
	}
	return &EnvLoader{
		prefix:  prefix,
		mapping: mapping,
		environ: environ,
	}
}

// defaultEnvMapping returns the short names for common settings.
func defaultEnvMapping() map[string]string {
	return map[string]string{
		"JSINSPECT_HOST":      "remote.host",
		"JSINSPECT_PORT":      "remote.port",
		"JSINSPECT_TARGET":    "remote.target",
		"JSINSPECT_ROOT":      "project.root",
		"JSINSPECT_LOG_LEVEL": "logging.level",
	}
}

// Load reads environment variables and returns a configuration map.
// Mapped variables use their configured path; any other prefixed variable
// maps SECTION_SOME_KEY to section.some_key.
// Note: Empty string values are treated as valid values, not as unset.
func (l *EnvLoader) Load() (map[string]any, error) {
	config := make(map[string]any)

	for _, env := range l.environ() {
		name, value, ok := strings.Cut(env, "=")
		if !ok || !strings.HasPrefix(name, l.prefix) {
			continue
		}

		path, mapped := l.mapping[name]
		if !mapped {
			path = l.envToPath(name)
		}
		if path == "" {
			continue
		}
		setByPath(config, path, parseValue(value))
	}

	return config, nil
}

// envToPath converts JSINSPECT_WATCH_DEBOUNCE_MS to watch.debounce_ms.
func (l *EnvLoader) envToPath(env string) string {
	name := strings.ToLower(strings.TrimPrefix(env, l.prefix))
	section, key, ok := strings.Cut(name, "_")
	if !ok || section == "" || key == "" {
		return ""
	}
	return section + "." + key
}

// parseValue attempts to parse the string value into an appropriate type.
func parseValue(s string) any {
	switch strings.ToLower(s) {
	case "true", "yes", "on":
		return true
	case "false", "no", "off":
		return false
	}

	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}

	// Comma-separated lists, e.g. ignore patterns.
	if strings.Contains(s, ",") {
		parts := strings.Split(s, ",")
		out := make([]any, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}

	return s
}

// setByPath sets a value in a nested map using a dot-separated path.
func setByPath(data map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	current := data

	for i := 0; i < len(parts)-1; i++ {
		part := parts[i]
		if next, ok := current[part].(map[string]any); ok {
			current = next
		} else {
			next := make(map[string]any)
			current[part] = next
			current = next
		}
	}

	current[parts[len(parts)-1]] = value
}
