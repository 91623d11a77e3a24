package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/stt/internal/build"
	"github.com/conneroisu/stt/internal/errors"
	"github.com/conneroisu/stt/internal/registry"
	"github.com/conneroisu/stt/internal/services"
	"github.com/conneroisu/stt/internal/testutils"
	"github.com/conneroisu/stt/internal/types"
)

func init() {
	color.NoColor = true
}

func TestKeyValues(t *testing.T) {
	kv := keyValues{}

	require.NoError(t, kv.Set("count=3"))
	require.NoError(t, kv.Set("name=Ada"))
	require.NoError(t, kv.Set(" flag =true"))
	require.NoError(t, kv.Set("quoted=\"3\""))
	require.NoError(t, kv.Set("empty="))

	assert.Equal(t, 3, kv["count"])
	assert.Equal(t, "Ada", kv["name"])
	assert.Equal(t, true, kv["flag"])
	assert.Equal(t, "3", kv["quoted"])
	assert.Equal(t, "", kv["empty"])

	assert.Error(t, kv.Set("novalue"))
	assert.Error(t, kv.Set("=x"))
	assert.Equal(t, "key=value", kv.Type())
	assert.Contains(t, kv.String(), `"name":"Ada"`)
}

func TestTemplateFlags_ParseContext(t *testing.T) {
	t.Run("none", func(t *testing.T) {
		value, err := (&TemplateFlags{}).ParseContext()
		require.NoError(t, err)
		assert.Nil(t, value)
	})

	t.Run("inline yaml", func(t *testing.T) {
		flags := &TemplateFlags{Context: "{title: Q3, tags: [a, b]}"}
		value, err := flags.ParseContext()
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"title": "Q3", "tags": []any{"a", "b"}}, value)
	})

	t.Run("file with set override", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "ctx.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"env": "dev", "nested": {"n": 1}}`), 0o644))

		flags := &TemplateFlags{Context: "@" + path, Set: keyValues{"env": "prod"}}
		value, err := flags.ParseContext()
		require.NoError(t, err)
		m := value.(map[string]any)
		assert.Equal(t, "prod", m["env"])
		assert.Equal(t, map[string]any{"n": 1}, m["nested"])

		_, err = json.Marshal(value)
		assert.NoError(t, err)
	})

	t.Run("set without context", func(t *testing.T) {
		flags := &TemplateFlags{Set: keyValues{"a": 1}}
		value, err := flags.ParseContext()
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"a": 1}, value)
	})

	t.Run("set on a scalar context", func(t *testing.T) {
		flags := &TemplateFlags{Context: "42", Set: keyValues{"a": 1}}
		_, err := flags.ParseContext()
		assert.Error(t, err)
	})

	t.Run("bad yaml", func(t *testing.T) {
		_, err := (&TemplateFlags{Context: "{unclosed"}).ParseContext()
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := (&TemplateFlags{Context: "@/does/not/exist"}).ParseContext()
		assert.Error(t, err)
	})
}

func TestTemplateFlags_ParseValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "values.yml")
	require.NoError(t, os.WriteFile(path, []byte("- first\n- {k: v}\n"), 0o644))

	flags := &TemplateFlags{ValuesFile: path}
	values, err := flags.ParseValues([]string{"3", "true", `"3"`, "Ada Lovelace", ""})
	require.NoError(t, err)
	assert.Equal(t, []any{"first", map[string]any{"k": "v"}, 3, true, "3", "Ada Lovelace", ""}, values)

	values, err = (&TemplateFlags{}).ParseValues(nil)
	require.NoError(t, err)
	assert.Empty(t, values)

	notList := filepath.Join(t.TempDir(), "map.yml")
	require.NoError(t, os.WriteFile(notList, []byte("a: 1\n"), 0o644))
	_, err = (&TemplateFlags{ValuesFile: notList}).ParseValues(nil)
	assert.Error(t, err)
}

func TestJSONSafe(t *testing.T) {
	in := map[any]any{
		1:      "one",
		"list": []any{map[any]any{true: "yes"}},
	}
	out := jsonSafe(in)
	assert.Equal(t, map[string]any{
		"1":    "one",
		"list": []any{map[string]any{"true": "yes"}},
	}, out)

	_, err := json.Marshal(out)
	assert.NoError(t, err)
}

func TestOutputFlags_Validate(t *testing.T) {
	for _, format := range []string{"table", "json", "yaml"} {
		assert.NoError(t, (&OutputFlags{Format: format}).Validate())
	}
	err := (&OutputFlags{Format: "xml"}).Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "table, json, yaml")
}

func TestTemplateOptions(t *testing.T) {
	opts, err := templateOptions(&TemplateFlags{})
	require.NoError(t, err)
	assert.Empty(t, opts)

	opts, err = templateOptions(&TemplateFlags{Context: "a: 1", Trim: true, Modules: []string{"example.com/m v1.0.0"}})
	require.NoError(t, err)
	assert.Len(t, opts, 3)

	_, err = templateOptions(&TemplateFlags{Context: "{"})
	assert.Error(t, err)
}

func sampleFragments() []types.Fragment {
	return []types.Fragment{
		{Kind: types.FragmentMarkup, Text: "Hello ", StartLine: 1, Offset: 0, SourcePath: "/t/a.tt"},
		{Kind: types.FragmentAutoWrite, Text: "Name", StartLine: 1, Offset: 9, SourcePath: "/t/a.tt"},
	}
}

func TestWriteFragments(t *testing.T) {
	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeFragments(&buf, sampleFragments(), "table"))
		out := buf.String()
		assert.Contains(t, out, "KIND")
		assert.Contains(t, out, "auto-write")
		assert.Contains(t, out, `"Hello "`)
		assert.Contains(t, out, "/t/a.tt")
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeFragments(&buf, sampleFragments(), "json"))

		var decoded []map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		require.Len(t, decoded, 2)
		assert.Equal(t, "auto-write", decoded[1]["kind"])
		assert.Equal(t, "Name", decoded[1]["text"])
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeFragments(&buf, sampleFragments(), "yaml"))

		var decoded []map[string]any
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
		require.Len(t, decoded, 2)
		assert.Equal(t, "markup", decoded[0]["kind"])
	})
}

func TestPreview(t *testing.T) {
	assert.Equal(t, `"short"`, preview("short", 10))
	assert.Equal(t, `"a\nb"`, preview("a\nb", 10))
	assert.Equal(t, `"hell"...`, preview("hello world", 4))
	assert.Equal(t, `"日本"...`, preview("日本語", 4), "wide runes take two columns")
}

func TestPrintFailure(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			"compile error",
			errors.NewTemplateFailure("undefined: x", types.SourceReference{Path: "/t/a.tt", Line: 4}),
			"/t/a.tt:4: compile error: undefined: x\n",
		},
		{
			"runtime error",
			errors.NewRuntimeFailure("index out of range", types.SourceReference{Path: "/t/a.tt", Line: 2}),
			"/t/a.tt:2: runtime error: index out of range\n",
		},
		{
			"io error with cause",
			errors.NewIOError("", "reading include", os.ErrNotExist),
			"error: reading include: file does not exist\n",
		},
		{
			"plain error",
			fmt.Errorf("boom"),
			"error: boom\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			printFailure(&buf, tt.err)
			assert.Equal(t, tt.expected, buf.String())
		})
	}
}

func TestPrintWarnings(t *testing.T) {
	var buf bytes.Buffer
	printWarnings(&buf, []types.Diagnostic{
		{Filename: "/t/a.tt", Line: 3, Message: "unused"},
		{Message: "no location"},
	})
	assert.Equal(t, "/t/a.tt:3: warning: unused\nwarning: no location\n", buf.String())
}

func TestWriteVersion(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeVersion(&buf, "text", false, false))
	assert.True(t, strings.HasPrefix(buf.String(), "stt "))
	assert.Contains(t, buf.String(), "Platform: ")

	buf.Reset()
	require.NoError(t, writeVersion(&buf, "json", false, false))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Contains(t, decoded, "version")
	assert.Contains(t, decoded, "go_version")

	buf.Reset()
	require.NoError(t, writeVersion(&buf, "yaml", false, false))
	assert.Contains(t, buf.String(), "version: ")

	assert.Error(t, writeVersion(&buf, "xml", false, false))
}

func TestLookupEntries(t *testing.T) {
	reg := registry.NewRegistry()
	tok, err := reg.Register(`\\server\share\a.tt`)
	require.NoError(t, err)
	_, err = reg.Register("//server/share/b.tt")
	require.NoError(t, err)

	unknown := "00000000-0000-4000-8000-000000000001"
	entries, missing := lookupEntries(reg, []string{tok.String(), "not-a-token", unknown}, nil, false)
	require.Len(t, entries, 1)
	assert.Equal(t, `\\server\share\a.tt`, entries[0].Path)
	assert.Equal(t, []string{"not-a-token", unknown}, missing)

	entries, missing = lookupEntries(reg, nil, []string{`\\SERVER\share\A.tt`, "/nowhere.tt"}, false)
	require.Len(t, entries, 1)
	assert.Equal(t, tok, entries[0].Token)
	assert.Equal(t, []string{"/nowhere.tt"}, missing)

	entries, missing = lookupEntries(reg, nil, nil, true)
	require.Len(t, entries, 2)
	assert.Empty(t, missing)
	assert.Equal(t, "//server/share/b.tt", entries[0].Path)

	var buf bytes.Buffer
	require.NoError(t, writeEntries(&buf, entries, "table"))
	assert.Contains(t, buf.String(), tok.String())

	buf.Reset()
	require.NoError(t, writeEntries(&buf, entries, "json"))
	var decoded []entryView
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Len(t, decoded, 2)
}

func TestCacheStats(t *testing.T) {
	var buf bytes.Buffer
	stats := build.CacheStats{Entries: 2, Size: 3 << 20, MaxSize: 512 << 20}

	require.NoError(t, writeCacheStats(&buf, "/c", stats, "table"))
	assert.Contains(t, buf.String(), "Entries:   2")
	assert.Contains(t, buf.String(), "3.0 MiB / 512.0 MiB")

	buf.Reset()
	require.NoError(t, writeCacheStats(&buf, "/c", stats, "json"))
	var decoded cacheView
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, cacheView{Dir: "/c", Entries: 2, Size: 3 << 20, MaxSize: 512 << 20}, decoded)
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.0 KiB", formatBytes(1024))
	assert.Equal(t, "1.5 MiB", formatBytes(3<<19))
	assert.Equal(t, "2.0 GiB", formatBytes(2<<30))
}

func TestRunInit(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "project")
	initMinimal, initForce = false, false
	t.Cleanup(func() { initMinimal, initForce = false, false })

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)

	require.NoError(t, runInit(cmd, []string{dir}))
	assert.FileExists(t, filepath.Join(dir, services.ConfigFileName))
	assert.FileExists(t, filepath.Join(dir, "templates", "hello.txt.tt"))
	assert.Contains(t, out.String(), "Initialized stt project")

	err := runInit(cmd, []string{dir})
	assert.Error(t, err, "existing config without --force")

	initForce = true
	assert.NoError(t, runInit(cmd, []string{dir}))
}

func TestRenderOptions(t *testing.T) {
	opts, err := renderOptions(&TemplateFlags{Set: keyValues{"env": "prod"}}, []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, opts.Paths)
	assert.Equal(t, map[string]any{"env": "prod"}, opts.Context)

	_, err = renderOptions(&TemplateFlags{Context: "{"}, nil)
	assert.Error(t, err)
}

// writeProjectConfig writes a config that keeps every path inside dir.
func writeProjectConfig(t *testing.T, dir string) string {
	t.Helper()
	content := fmt.Sprintf(`templates:
  base_dir: %[1]s
backend:
  cache_dir: %[1]s/.stt/cache
registry:
  snapshot: %[1]s/.stt/registry.msgpack
log:
  level: error
`, filepath.ToSlash(dir))
	path := filepath.Join(dir, ".stt.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func executeRoot(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), errOut.String(), err
}

func TestFragmentsCommand(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeProjectConfig(t, dir)
	testutils.WriteTemplate(t, dir, "page.tt", "Title\n<#@ include file=\"part.tt\" #><#= 1 #>")
	testutils.WriteTemplate(t, dir, "part.tt", "part")

	out, _, err := executeRoot(t, "--config", cfgPath, "fragments", "page.tt", "--format", "json")
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	require.Len(t, decoded, 3)
	assert.Equal(t, "part", decoded[1]["text"])
	assert.Equal(t, "auto-write", decoded[2]["kind"])
}

func TestTransformCommand(t *testing.T) {
	testutils.RequireGo(t)

	dir := t.TempDir()
	cfgPath := writeProjectConfig(t, dir)
	testutils.WriteTemplate(t, dir, "hello.tt", testutils.StandardTemplates["Properties"])
	testutils.WriteTemplate(t, dir, "broken.tt", "ok\n<# undefinedName() #>")

	out, _, err := executeRoot(t, "--config", cfgPath, "transform", "hello.tt", "Ada", "3")
	require.NoError(t, err)
	assert.Equal(t, "\n\nAda:3", out)

	_, errOut, err := executeRoot(t, "--config", cfgPath, "transform", "broken.tt")
	require.ErrorIs(t, err, errReported)
	assert.Contains(t, errOut, "broken.tt:2: compile error")
}
