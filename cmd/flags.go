package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// TemplateFlags are the inputs shared by the commands that run templates.
type TemplateFlags struct {
	Context    string
	Set        keyValues
	ValuesFile string
	Trim       bool
	Modules    []string
}

// OutputFlags select how listings are printed.
type OutputFlags struct {
	Format string
}

var outputFormats = []string{"table", "json", "yaml"}

func addTemplateFlags(cmd *cobra.Command) *TemplateFlags {
	flags := &TemplateFlags{Set: keyValues{}}
	cmd.Flags().StringVar(&flags.Context, "context", "", "template context as YAML or JSON, or @file")
	cmd.Flags().Var(&flags.Set, "set", "context entry key=value (repeatable)")
	cmd.Flags().StringVar(&flags.ValuesFile, "values-file", "", "YAML or JSON list of property values")
	cmd.Flags().BoolVar(&flags.Trim, "trim", false, "trim whitespace around the output")
	cmd.Flags().StringSliceVar(&flags.Modules, "module", nil, `extra requirement for generated modules, "path version"`)
	return flags
}

func addOutputFlags(cmd *cobra.Command) *OutputFlags {
	flags := &OutputFlags{}
	cmd.Flags().StringVarP(&flags.Format, "format", "f", "table", "output format (table|json|yaml)")
	return flags
}

// Validate rejects unknown formats.
func (f *OutputFlags) Validate() error {
	for _, format := range outputFormats {
		if f.Format == format {
			return nil
		}
	}
	return fmt.Errorf("invalid output format %s, must be one of: %s", f.Format, strings.Join(outputFormats, ", "))
}

// ParseContext builds the template context from --context and --set. With
// neither the context is nil.
func (f *TemplateFlags) ParseContext() (any, error) {
	var value any
	if f.Context != "" {
		data, source, err := readInline(f.Context)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &value); err != nil {
			return nil, fmt.Errorf("invalid context in %s: %w", source, err)
		}
		value = jsonSafe(value)
	}

	if len(f.Set) == 0 {
		return value, nil
	}

	m, ok := value.(map[string]any)
	if value != nil && !ok {
		return nil, fmt.Errorf("--set needs a mapping context, got %T", value)
	}
	if m == nil {
		m = make(map[string]any)
	}
	for k, v := range f.Set {
		m[k] = v
	}
	return m, nil
}

// ParseValues reads --values-file followed by the positional values. Each
// positional value is parsed as a YAML scalar, so "3" is a number and
// "true" a boolean; quote it to pass a string.
func (f *TemplateFlags) ParseValues(args []string) ([]any, error) {
	var values []any
	if f.ValuesFile != "" {
		data, err := os.ReadFile(f.ValuesFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read values file %s: %w", f.ValuesFile, err)
		}
		if err := yaml.Unmarshal(data, &values); err != nil {
			return nil, fmt.Errorf("values file %s must hold a list: %w", f.ValuesFile, err)
		}
	}

	for _, arg := range args {
		var v any
		if err := yaml.Unmarshal([]byte(arg), &v); err != nil || v == nil {
			v = arg
		}
		values = append(values, v)
	}

	for i, v := range values {
		values[i] = jsonSafe(v)
	}
	return values, nil
}

// jsonSafe converts map[any]any trees that encoding/json cannot encode.
func jsonSafe(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = jsonSafe(e)
		}
		return t
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[fmt.Sprint(k)] = jsonSafe(e)
		}
		return m
	case []any:
		for i, e := range t {
			t[i] = jsonSafe(e)
		}
		return t
	default:
		return v
	}
}

// readInline returns the bytes of an inline value or of the @file it names.
func readInline(value string) ([]byte, string, error) {
	if name, ok := strings.CutPrefix(value, "@"); ok {
		data, err := os.ReadFile(name)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read %s: %w", name, err)
		}
		return data, name, nil
	}
	return []byte(value), "argument", nil
}

// keyValues is a repeatable key=value flag.
type keyValues map[string]any

var _ pflag.Value = (*keyValues)(nil)

func (kv *keyValues) String() string {
	if kv == nil || len(*kv) == 0 {
		return ""
	}
	data, _ := json.Marshal(*kv)
	return string(data)
}

func (kv *keyValues) Set(s string) error {
	key, raw, ok := strings.Cut(s, "=")
	if !ok || strings.TrimSpace(key) == "" {
		return fmt.Errorf("expected key=value, got %q", s)
	}
	var v any
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil || v == nil {
		v = raw
	}
	if *kv == nil {
		*kv = keyValues{}
	}
	(*kv)[strings.TrimSpace(key)] = jsonSafe(v)
	return nil
}

func (kv *keyValues) Type() string {
	return "key=value"
}
