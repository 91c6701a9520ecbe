package builder

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"runtime"
	"slices"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/pelletier/go-toml/v2"
	"github.com/qobs-build/qide/internal/layout"
	"github.com/qobs-build/qide/internal/tool"
	"github.com/sergi/go-diff/diffmatchpatch"
)

const ConfigFilename = "Qide.toml"

var defaultTargets = map[string]TargetSection{
	"release": {
		OptLevel: int64(3),
	},
	"debug": {
		Debug: ptr(true), // no -O
	},
}

type Config struct {
	Project     ProjectSection           `toml:"project"`
	Directories DirectoriesSection       `toml:"directories"`
	Options     ToolSection              `toml:"options"`
	Compiler    ToolSection              `toml:"compiler"`
	Linker      ToolSection              `toml:"linker"`
	Archiver    ToolSection              `toml:"archiver"`
	Target      map[string]TargetSection `toml:"target"`
}

// Targets returns project.targets in declared order, or the sorted names of
// the [target] tables when none are declared.
func (c Config) Targets() []string {
	if len(c.Project.Targets) > 0 {
		return slices.Clone(c.Project.Targets)
	}
	return slices.Sorted(maps.Keys(c.Target))
}

// ProjectSection defines the [project] section
type ProjectSection struct {
	Name          string   `toml:"name"`
	Description   string   `toml:"description"`
	Authors       []string `toml:"authors"`
	Lib           *bool    `toml:"lib"`
	Family        string   `toml:"family"`
	Targets       []string `toml:"targets"`
	DefaultTarget string   `toml:"default-target"`
	// TargetPrefix is true, false, or the string "target".
	TargetPrefix any   `toml:"target-prefix"`
	Flatten      *bool `toml:"flatten"`
}

// IsLib reports whether the project builds a static library.
func (p ProjectSection) IsLib() bool { return isTrue(p.Lib) }

func (p ProjectSection) flatten() bool { return isTrue(p.Flatten) }

func (p ProjectSection) targetPrefix() (bool, error) {
	switch v := p.TargetPrefix.(type) {
	case nil:
		return true, nil
	case bool:
		return v, nil
	case string:
		if v == "target" {
			return true, nil
		}
	}
	return false, fmt.Errorf("project.target-prefix: expected true, false or \"target\", got %v", p.TargetPrefix)
}

// DirectoriesSection defines the [directories] section. A nil field keeps
// the conventional name; an empty string means the working directory.
type DirectoriesSection struct {
	Header  *string `toml:"header"`
	Source  *string `toml:"source"`
	Build   *string `toml:"build"`
	Binary  *string `toml:"binary"`
	Library *string `toml:"library"`
}

func (d DirectoriesSection) each(fn func(kind layout.Kind, name string)) {
	for kind, v := range map[layout.Kind]*string{
		layout.Header:  d.Header,
		layout.Source:  d.Source,
		layout.Build:   d.Build,
		layout.Binary:  d.Binary,
		layout.Library: d.Library,
	} {
		if v != nil {
			fn(kind, *v)
		}
	}
}

// ToolSection defines [options], [compiler], [linker] and [archiver]
type ToolSection struct {
	Executable      string   `toml:"executable"`
	Options         []string `toml:"options"`
	Paths           []string `toml:"paths"`
	MultiThreaded   *bool    `toml:"multi-threaded"`
	ObjectExtension string   `toml:"object-extension"`
	Libraries       []string `toml:"libraries"`
}

// Settings lists the options that were actually written, in a fixed order.
func (s ToolSection) Settings() []tool.Setting {
	var out []tool.Setting
	if s.Executable != "" {
		out = append(out, tool.Setting{Key: tool.OptExecutable, Value: s.Executable})
	}
	if len(s.Options) > 0 {
		out = append(out, tool.Setting{Key: tool.OptOptions, Value: s.Options})
	}
	if len(s.Paths) > 0 {
		out = append(out, tool.Setting{Key: tool.OptPaths, Value: s.Paths})
	}
	if s.MultiThreaded != nil {
		out = append(out, tool.Setting{Key: tool.OptMultiThreaded, Value: *s.MultiThreaded})
	}
	if s.ObjectExtension != "" {
		out = append(out, tool.Setting{Key: tool.OptObjectExtension, Value: s.ObjectExtension})
	}
	if len(s.Libraries) > 0 {
		out = append(out, tool.Setting{Key: tool.OptLibraries, Value: s.Libraries})
	}
	return out
}

// TargetSection defines a [target.<name>] section
type TargetSection struct {
	OptLevel        any               `toml:"opt-level"`
	Debug           *bool             `toml:"debug"`
	Defines         map[string]string `toml:"defines"`
	CompilerOptions []string          `toml:"compiler-options"`
	LinkerOptions   []string          `toml:"linker-options"`
	Hook            string            `toml:"hook"`
}

// CompilerFlags renders the target's compiler options: -O, -g, -D, then
// compiler-options verbatim.
func (t TargetSection) CompilerFlags() []string {
	var flags []string
	if lvl := optLevel(t.OptLevel); lvl != "" {
		flags = append(flags, "-O"+lvl)
	}
	if isTrue(t.Debug) {
		flags = append(flags, "-g")
	}
	for _, define := range slices.Sorted(maps.Keys(t.Defines)) {
		if v := t.Defines[define]; v != "" {
			flags = append(flags, "-D"+define+"="+v)
		} else {
			flags = append(flags, "-D"+define)
		}
	}
	return append(flags, t.CompilerOptions...)
}

// optLevel accepts the integer or string forms of opt-level (3, "s", "z").
func optLevel(v any) string {
	switch v := v.(type) {
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case string:
		return v
	}
	return ""
}

// mergeStructs merges the fields of the src struct into the dst struct
func mergeStructs(dst, src any) error {
	dstVal := reflect.ValueOf(dst)
	if dstVal.Kind() != reflect.Pointer || dstVal.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("dst must be a pointer to a struct")
	}

	dstElem := dstVal.Elem()
	srcVal := reflect.ValueOf(src)

	if srcVal.Kind() == reflect.Pointer {
		srcVal = srcVal.Elem()
	}

	if srcVal.Kind() != reflect.Struct {
		return fmt.Errorf("src must be a struct or a pointer to a struct")
	}

	if dstElem.Type() != srcVal.Type() {
		return fmt.Errorf("dst and src must be of the same struct type")
	}

	for i := range srcVal.NumField() {
		srcField := srcVal.Field(i)
		dstField := dstElem.Field(i)

		if !dstField.CanSet() {
			continue
		}

		switch dstField.Kind() {
		case reflect.Slice:
			if !srcField.IsNil() {
				dstField.Set(reflect.AppendSlice(dstField, srcField))
			}
		case reflect.Map:
			if !srcField.IsNil() {
				if dstField.IsNil() {
					dstField.Set(reflect.MakeMap(dstField.Type()))
				}
				for _, key := range srcField.MapKeys() {
					dstField.SetMapIndex(key, srcField.MapIndex(key))
				}
			}
		default:
			if !srcField.IsZero() {
				dstField.Set(srcField)
			}
		}
	}

	return nil
}

func ptr[T any](v T) *T { return &v }

func isTrue(b *bool) bool { return b != nil && *b }

func mustMarshal(v any) string {
	b, err := toml.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}

// unmarshalConditional parses a table whose sub-tables may be keyed by an
// expression; those are merged over the base fields when the expression is
// true, e.g. [compiler.'target_os == "windows"'].
func unmarshalConditional[T any](table map[string]any, name string, dst *T, env ConfigEnv) error {
	baseFields := make(map[string]any)
	conditionalFields := make(map[string]map[string]any)

	for key, val := range table {
		if subMap, ok := val.(map[string]any); ok {
			_, err := expr.Compile(key, expr.Env(env), expr.AsBool())
			if err == nil {
				conditionalFields[key] = subMap
				continue
			}
		}
		baseFields[key] = val
	}

	if len(baseFields) > 0 {
		if err := toml.Unmarshal([]byte(mustMarshal(baseFields)), dst); err != nil {
			return fmt.Errorf("failed to parse [%s] section: %w", name, err)
		}
	}

	// sorted so that later conditions win deterministically
	for _, expression := range slices.Sorted(maps.Keys(conditionalFields)) {
		program, err := expr.Compile(expression, expr.Env(env), expr.AsBool())
		if err != nil {
			return fmt.Errorf("failed to compile expression for [%s.%q]: %w", name, expression, err)
		}

		result, err := expr.Run(program, env)
		if err != nil {
			return fmt.Errorf("failed to run expression for [%s.%q]: %w", name, expression, err)
		}

		if matched, ok := result.(bool); !ok || !matched {
			continue
		}

		var condSection T
		if err := toml.Unmarshal([]byte(mustMarshal(conditionalFields[expression])), &condSection); err != nil {
			return fmt.Errorf("failed to parse conditional section [%s.%q]: %w", name, expression, err)
		}
		if err := mergeStructs(dst, condSection); err != nil {
			return fmt.Errorf("failed to merge conditional section [%s.%q]: %w", name, expression, err)
		}
	}

	return nil
}

// unmarshalSection parses an optional top-level table with conditionals.
func unmarshalSection[T any](rawCfg map[string]any, name string, dst *T, env ConfigEnv) error {
	data, ok := rawCfg[name]
	if !ok {
		return nil
	}
	table, ok := data.(map[string]any)
	if !ok {
		return fmt.Errorf("invalid [%s] section format: expected a table", name)
	}
	return unmarshalConditional(table, name, dst, env)
}

var exprRegex = regexp.MustCompile(`\{\{(.+?)\}\}`)

// evaluateString finds and evaluates all {{...}} expressions in a string
func evaluateString(s string, env ConfigEnv) (string, error) {
	matches := exprRegex.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s, nil
	}

	var builder strings.Builder
	lastIndex := 0

	for _, matchIndexes := range matches {
		fullMatchStart := matchIndexes[0]
		fullMatchEnd := matchIndexes[1]
		expressionStart := matchIndexes[2]
		expressionEnd := matchIndexes[3]

		builder.WriteString(s[lastIndex:fullMatchStart])

		expression := strings.TrimSpace(s[expressionStart:expressionEnd])
		program, err := expr.Compile(expression, expr.Env(env))
		if err != nil {
			return "", fmt.Errorf("failed to compile expression %q: %w", expression, err)
		}

		result, err := expr.Run(program, env)
		if err != nil {
			return "", fmt.Errorf("failed to run expression %q: %w", expression, err)
		}

		fmt.Fprintf(&builder, "%v", result)
		lastIndex = fullMatchEnd
	}

	builder.WriteString(s[lastIndex:])

	return builder.String(), nil
}

// processExpressions recursively walks the parsed TOML data and evaluates
// expressions in strings. Hooks are left alone; they run on activation.
func processExpressions(data any, env ConfigEnv) (any, error) {
	switch v := data.(type) {
	case map[string]any:
		for key, val := range v {
			if key == "hook" {
				continue
			}
			processedVal, err := processExpressions(val, env)
			if err != nil {
				return nil, err
			}
			v[key] = processedVal
		}
		return v, nil
	case []any:
		for i, item := range v {
			processedItem, err := processExpressions(item, env)
			if err != nil {
				return nil, err
			}
			v[i] = processedItem
		}
		return v, nil
	case string:
		return evaluateString(v, env)
	default:
		return data, nil
	}
}

func ParseConfig(rdr io.Reader, env ConfigEnv) (*Config, error) {
	var rawConfig map[string]any
	dec := toml.NewDecoder(rdr)
	if err := dec.Decode(&rawConfig); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			return nil, errors.New(derr.String())
		}
		return nil, err
	}

	processedConfig, err := processExpressions(rawConfig, env)
	if err != nil {
		return nil, fmt.Errorf("error processing expressions in config: %w", err)
	}
	rawConfig = processedConfig.(map[string]any)

	cfg := new(Config)
	cfg.Target = maps.Clone(defaultTargets)

	if err := unmarshalSection(rawConfig, "project", &cfg.Project, env); err != nil {
		return nil, err
	}
	if err := unmarshalSection(rawConfig, "directories", &cfg.Directories, env); err != nil {
		return nil, err
	}
	if err := unmarshalSection(rawConfig, "options", &cfg.Options, env); err != nil {
		return nil, err
	}
	if err := unmarshalSection(rawConfig, "compiler", &cfg.Compiler, env); err != nil {
		return nil, err
	}
	if err := unmarshalSection(rawConfig, "linker", &cfg.Linker, env); err != nil {
		return nil, err
	}
	if err := unmarshalSection(rawConfig, "archiver", &cfg.Archiver, env); err != nil {
		return nil, err
	}
	if err := unmarshalTargets(rawConfig, cfg, env); err != nil {
		return nil, err
	}

	if cfg.Project.Name == "" {
		return nil, errors.New("[project] name is required")
	}
	if _, err := cfg.Project.targetPrefix(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// unmarshalTargets merges every [target.<name>] table over the built-in
// debug and release defaults.
func unmarshalTargets(rawCfg map[string]any, cfg *Config, env ConfigEnv) error {
	data, ok := rawCfg["target"]
	if !ok {
		return nil
	}
	table, ok := data.(map[string]any)
	if !ok {
		return errors.New("invalid [target] section format: expected a table")
	}
	for name, val := range table {
		sub, ok := val.(map[string]any)
		if !ok {
			return fmt.Errorf("invalid [target.%s] section format: expected a table", name)
		}
		var parsed TargetSection
		if err := unmarshalConditional(sub, "target."+name, &parsed, env); err != nil {
			return err
		}
		merged := cfg.Target[name]
		if err := mergeStructs(&merged, parsed); err != nil {
			return fmt.Errorf("failed to merge [target.%s]: %w", name, err)
		}
		cfg.Target[name] = merged
	}
	return nil
}

// ParseConfigFromFile parses and validates a config file from a filepath
func ParseConfigFromFile(path string, env ConfigEnv) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ParseConfig(bufio.NewReader(f), env)
}

//
// expr-lang helpers
//

// RunHook evaluates the target's hook expression. A hook must yield true.
func (t TargetSection) RunHook(name string, env ConfigEnv) error {
	if t.Hook == "" {
		return nil
	}

	program, err := expr.Compile(t.Hook, expr.Env(env))
	if err != nil {
		return fmt.Errorf("failed to compile hook for target %q: %w", name, err)
	}
	result, err := expr.Run(program, env)
	if err != nil {
		return fmt.Errorf("failed to run hook for target %q: %w", name, err)
	}

	if result, ok := result.(bool); !ok || !result {
		return fmt.Errorf("hook for target %q returned %v\n%s", name, result, t.Hook)
	}

	return nil
}

type ConfigEnv struct {
	TargetOS   string            `expr:"target_os"`
	TargetArch string            `expr:"target_arch"`
	Environ    map[string]string `expr:"environ"`
	Target     string            `expr:"target"`
	basedir    string
}

func NewConfigEnv(basedir, target string) ConfigEnv {
	environ := make(map[string]string)
	for _, e := range os.Environ() {
		if i := strings.Index(e, "="); i >= 0 {
			environ[e[:i]] = e[i+1:]
		}
	}

	return ConfigEnv{
		TargetOS:   runtime.GOOS,
		TargetArch: runtime.GOARCH,
		Environ:    environ,
		Target:     target,
		basedir:    basedir,
	}
}

// inside resolves path against the project root and refuses to leave it.
func (env ConfigEnv) inside(path string) (string, error) {
	fullPath := filepath.Join(env.basedir, path)
	rel, err := filepath.Rel(env.basedir, fullPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q is outside of project directory %q", path, env.basedir)
	}
	return fullPath, nil
}

// Patch applies a diff-match-patch text patch to a project file. It reports
// whether any hunk applied.
func (env ConfigEnv) Patch(path, patchText string) (bool, error) {
	fullPath, err := env.inside(path)
	if err != nil {
		return false, err
	}
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return false, err
	}

	dmp := diffmatchpatch.New()
	patches, err := dmp.PatchFromText(patchText)
	if err != nil {
		return false, err
	}
	patchedText, results := dmp.PatchApply(patches, string(data))
	if !slices.Contains(results, true) {
		return false, nil // nothing was applied, nothing to write
	}

	if err := os.WriteFile(fullPath, []byte(patchedText), 0644); err != nil {
		return false, err
	}
	return true, nil
}

func (env ConfigEnv) ReadFile(path string) (string, error) {
	fullPath, err := env.inside(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
