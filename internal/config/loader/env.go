package loader

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"

	"github.com/dshills/varlens/internal/config/layer"
)

// EnvLoader turns prefixed environment variables into configuration.
// Mapped names go to their configured path; any other PREFIX_SECTION_KEY
// variable becomes section.key with the key in snake case.
type EnvLoader struct {
	prefix  string
	mapping map[string]string
	environ func() []string
}

// NewEnvLoader creates a loader for variables starting with prefix
// (including the trailing underscore).
func NewEnvLoader(prefix string) *EnvLoader {
	return &EnvLoader{
		prefix:  prefix,
		mapping: defaultEnvMapping(prefix),
		environ: os.Environ,
	}
}

func defaultEnvMapping(prefix string) map[string]string {
	m := map[string]string{
		"LOG_LEVEL":          "logging.level",
		"LOG_FORMAT":         "logging.format",
		"MAX_DEPTH":          "limits.max_depth",
		"MAX_ARRAY_ELEMENTS": "limits.max_array_elements",
		"MAX_STRING_SCAN":    "limits.max_string_scan",
		"DAP_ADDRESS":        "dap.address",
		"DAP_TIMEOUT":        "dap.timeout",
		"SCRIPTS_DIR":        "scripts.dir",
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[prefix+k] = v
	}
	return out
}

// AddMapping routes the variable env to path.
func (l *EnvLoader) AddMapping(env, path string) {
	l.mapping[env] = path
}

// Load implements Loader.
func (l *EnvLoader) Load() (map[string]any, error) {
	out := make(map[string]any)
	for _, kv := range l.environ() {
		name, val, ok := strings.Cut(kv, "=")
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
		layer.SetByPath(out, path, parseValue(val))
	}
	return out, nil
}

// envToPath converts PREFIX_LIMITS_MAX_DEPTH to limits.max_depth.
func (l *EnvLoader) envToPath(env string) string {
	section, key, ok := strings.Cut(strings.TrimPrefix(env, l.prefix), "_")
	if !ok || section == "" || key == "" {
		return ""
	}
	return strings.ToLower(section) + "." + strings.ToLower(key)
}

// parseValue guesses the type of an environment value.
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
	if strings.Contains(s, ".") {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	if strings.HasPrefix(s, "[") {
		var v []any
		if err := json.Unmarshal([]byte(s), &v); err == nil {
			return v
		}
	}
	return s
}
