package transformer

import (
	"context"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/conneroisu/stt/internal/build"
	"github.com/conneroisu/stt/internal/emitter"
	"github.com/conneroisu/stt/internal/errors"
	"github.com/conneroisu/stt/internal/registry"
	"github.com/conneroisu/stt/internal/testutils"
	"github.com/conneroisu/stt/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapReader map[string]string

func (m mapReader) ReadFile(name string) ([]byte, error) {
	text, ok := m[filepath.ToSlash(name)]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	return []byte(text), nil
}

func newTestTransformer(t *testing.T, opts ...Option) (*Transformer, *testutils.FakeBackend) {
	t.Helper()
	backend := &testutils.FakeBackend{Output: "ok"}
	base := []Option{
		WithBaseDir(t.TempDir()),
		WithBackend(backend),
		WithRegistry(registry.NewRegistry()),
		WithStagingDir(t.TempDir()),
	}
	tr, err := New(append(base, opts...)...)
	require.NoError(t, err)
	return tr, backend
}

func TestNew_Defaults(t *testing.T) {
	tr, err := New(WithBackend(&testutils.FakeBackend{}))
	require.NoError(t, err)

	wd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, wd, tr.BaseDir())
	assert.Same(t, registry.Default(), tr.Registry())
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
		code string
	}{
		{"blank base dir", []Option{WithBaseDir("  ")}, errors.CodeInvalidBaseDir},
		{"func context", []Option{WithContext(func() {})}, errors.CodeInvalidContext},
		{"chan context", []Option{WithContext(make(chan int))}, errors.CodeInvalidContext},
		{"unencodable context", []Option{WithContext(map[string]any{"f": func() {}})}, errors.CodeInvalidContext},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opts...)
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrConfiguration)

			var te *errors.TemplateError
			require.ErrorAs(t, err, &te)
			assert.Equal(t, tt.code, te.Code)
		})
	}
}

func TestNew_ContextIsEncoded(t *testing.T) {
	tr, backend := newTestTransformer(t, WithContext(map[string]int{"n": 1}))

	_, err := tr.TransformText(context.Background(), "x", "")
	require.NoError(t, err)

	invocations := backend.Invocations()
	require.Len(t, invocations, 1)
	assert.JSONEq(t, `{"n":1}`, string(invocations[0].Context))
}

func TestGenerate_MarkupAndBlankLines(t *testing.T) {
	tr, _ := newTestTransformer(t, WithProvenance(false))

	unit, err := tr.Generate("\n\nText", "")
	require.NoError(t, err)

	assert.Equal(t, types.DefaultLanguage, unit.Language)
	assert.Contains(t, unit.Source, "Output.WriteLine()\nOutput.WriteLine()\nOutput.Write(\"Text\")\n")
	assert.NotContains(t, unit.Source, "//line")
}

func TestGenerate_CRLFMarkup(t *testing.T) {
	tr, _ := newTestTransformer(t, WithProvenance(false))

	unit, err := tr.Generate("\r\nA", "")
	require.NoError(t, err)
	assert.Contains(t, unit.Source, `Output.WriteLine("\r")`)
	assert.Contains(t, unit.Source, `Output.Write("A")`)
}

func TestGenerate_RoutesFragments(t *testing.T) {
	tr, _ := newTestTransformer(t)
	path := filepath.Join(tr.BaseDir(), "Route.tt")

	text := `<#@ template language="Go" #>
<#@ import namespace="strings" #>
<#@ property name="Name" type="string" #>
<# x := strings.ToUpper(Name) #>
<#=   x   #>
<#+ func helper() {} #>`

	unit, err := tr.Generate(text, path)
	require.NoError(t, err)

	assert.Equal(t, path, unit.SourcePath)
	require.Len(t, unit.Namespaces, 1)
	require.Len(t, unit.Properties, 1)
	assert.Equal(t, "Name", unit.Properties[0].Name)

	src := unit.Source
	assert.Contains(t, src, "\t\"strings\"")
	assert.Contains(t, src, "\tName string")
	assert.Contains(t, src, "x := strings.ToUpper(Name)")
	assert.Contains(t, src, "Output.Write(x)")
	assert.Contains(t, src, "func helper() {}")
	assert.Contains(t, src, "//line "+path+":4")
	assert.Contains(t, src, "//line "+path+":5")
	assert.Less(t, strings.Index(src, "func helper() {}"), strings.Index(src, "func (t *Template) TransformText()"))
}

func TestGenerate_DuplicateImportsAreKeptButImportedOnce(t *testing.T) {
	tr, _ := newTestTransformer(t)

	unit, err := tr.Generate(`<#@ import namespace="strings" #><#@ import namespace="strings" #>`, "")
	require.NoError(t, err)
	assert.Len(t, unit.Namespaces, 2, "the directive state keeps duplicates")
	assert.Equal(t, 1, strings.Count(unit.Source, `"strings"`), "Go rejects a repeated import")
}

func TestGenerate_LastTemplateDirectiveWins(t *testing.T) {
	tr, _ := newTestTransformer(t)

	_, err := tr.Generate(`<#@ template language="C#" #>text<#@ template language="Go1.22" #>`, "")
	require.NoError(t, err)

	_, err = tr.Generate(`<#@ template language="Go" #>text<#@ template language="VB" #>`, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrLanguageNotSupported)
}

func TestGenerate_DirectiveErrors(t *testing.T) {
	tr, _ := newTestTransformer(t)

	tests := []struct {
		name   string
		text   string
		target error
		line   int
	}{
		{"template without language", "a\n<#@ template #>", errors.ErrMissingAttribute, 2},
		{"unknown language", `<#@ template language="Rust" #>`, errors.ErrUnrecognizedLanguage, 1},
		{"property without type", "\n\n<#@ property name=\"X\" #>", errors.ErrMissingAttribute, 3},
		{"reserved property", `<#@ property name="Output" type="int" #>`, errors.ErrConfiguration, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tr.Generate(tt.text, "T.tt")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.target)
			assert.Equal(t, tt.line, errors.SourceOf(err).Line)
		})
	}
}

func TestFragments_IncludesExpandInPlace(t *testing.T) {
	reader := mapReader{
		"/tpl/A.tt":     "a1\n<#@ include file=\"B.tt\" #>\na3",
		"/tpl/B.tt":     "b1\n<#= \"b\" #>",
		"/tpl/sub/C.tt": "c",
	}
	tr, _ := newTestTransformer(t, WithBaseDir("/tpl"), WithFileReader(reader))

	fragments, err := tr.Fragments(reader["/tpl/A.tt"], "/tpl/A.tt")
	require.NoError(t, err)

	var got []string
	for _, f := range fragments {
		got = append(got, f.Kind.String()+"@"+filepath.ToSlash(f.SourcePath)+":"+f.Text)
	}
	assert.Equal(t, []string{
		"markup@/tpl/A.tt:a1\n",
		"markup@/tpl/B.tt:b1\n",
		"auto-write@/tpl/B.tt:\"b\"",
		"markup@/tpl/A.tt:\na3",
	}, got)

	assert.Equal(t, 2, fragments[2].StartLine, "included fragments keep their own line numbers")
	assert.Equal(t, 2, fragments[3].StartLine)
}

func TestFragments_IncludeCycle(t *testing.T) {
	reader := mapReader{
		"/tpl/A.tt":    `<#@ include file="B.tt" #>`,
		"/tpl/B.tt":    `<#@ include file="A.tt" #>`,
		"/tpl/Self.tt": `<#@ include file="Self.tt" #>`,
	}
	tr, _ := newTestTransformer(t, WithBaseDir("/tpl"), WithFileReader(reader))

	_, err := tr.Fragments(reader["/tpl/A.tt"], "/tpl/A.tt")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrIncludeCycle)
	assert.Equal(t, "/tpl/B.tt", filepath.ToSlash(errors.SourceOf(err).Path))

	_, err = tr.Fragments(reader["/tpl/Self.tt"], "/tpl/Self.tt")
	assert.ErrorIs(t, err, errors.ErrIncludeCycle)
}

func TestFragments_IncludeDepth(t *testing.T) {
	reader := mapReader{}
	for i := 0; i <= MaxIncludeDepth+1; i++ {
		reader["/tpl/"+strconv.Itoa(i)+".tt"] = `<#@ include file="` + strconv.Itoa(i+1) + `.tt" #>`
	}
	tr, _ := newTestTransformer(t, WithBaseDir("/tpl"), WithFileReader(reader))

	_, err := tr.Fragments(reader["/tpl/0.tt"], "/tpl/0.tt")
	require.Error(t, err)

	var te *errors.TemplateError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, errors.CodeIncludeDepth, te.Code)
}

func TestFragments_MissingInclude(t *testing.T) {
	tr, _ := newTestTransformer(t, WithFileReader(mapReader{}))

	_, err := tr.Fragments("x\n<#@ include file=\"nope.tt\" #>", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.Equal(t, 2, errors.SourceOf(err).Line)
}

func TestFragments_NonLocalSourceIncludesFromBaseDir(t *testing.T) {
	reader := mapReader{"/tpl/B.tt": "from base"}
	tr, _ := newTestTransformer(t, WithBaseDir("/tpl"), WithFileReader(reader))

	fragments, err := tr.Fragments(`<#@ include file="B.tt" #>`, "https://example.com/A.tt")
	require.NoError(t, err)
	require.Len(t, fragments, 1)
	assert.Equal(t, "from base", fragments[0].Text)
}

func TestTransformText_PassesValuesAndClosesArtifact(t *testing.T) {
	tr, backend := newTestTransformer(t, WithTrim(true), WithModules("example.com/m v1.0.0"))
	backend.Output = "rendered"

	out, err := tr.TransformText(context.Background(), testutils.StandardTemplates["Properties"], "P.tt", "Ada", 3)
	require.NoError(t, err)
	assert.Equal(t, "rendered", out)

	requests := backend.Requests()
	require.Len(t, requests, 1)
	assert.Equal(t, []string{"example.com/m v1.0.0"}, requests[0].Modules)
	require.Len(t, requests[0].Unit.Properties, 2)

	invocations := backend.Invocations()
	require.Len(t, invocations, 1)
	assert.Equal(t, []json.RawMessage{json.RawMessage(`"Ada"`), json.RawMessage(`3`)}, invocations[0].Properties)
	assert.Equal(t, "P.tt", invocations[0].SourcePath)
	assert.True(t, invocations[0].Trim)
}

func TestTransformText_SwappedDeclarationsAndValuesBindAlike(t *testing.T) {
	bound := func(template string, values ...any) map[string]string {
		tr, backend := newTestTransformer(t)
		_, err := tr.TransformText(context.Background(), template, "P.tt", values...)
		require.NoError(t, err)

		requests := backend.Requests()
		invocations := backend.Invocations()
		require.Len(t, requests, 1)
		require.Len(t, invocations, 1)

		props := requests[0].Unit.Properties
		require.Len(t, invocations[0].Properties, len(props))
		state := make(map[string]string, len(props))
		for i, p := range props {
			state[p.Name+" "+p.TypeName] = string(invocations[0].Properties[i])
		}
		return state
	}

	forward := bound(`<#@ property name="P1" type="int" #><#@ property name="P2" type="string" #>`, 5, "x")
	swapped := bound(`<#@ property name="P2" type="string" #><#@ property name="P1" type="int" #>`, "x", 5)

	assert.Equal(t, map[string]string{"P1 int": `5`, "P2 string": `"x"`}, forward)
	assert.Equal(t, forward, swapped)
}

func TestGenerate_AnonymousSourceIsNotRegistered(t *testing.T) {
	reg := registry.NewRegistry()
	tr, _ := newTestTransformer(t, WithRegistry(reg))

	unit, err := tr.Generate("<#= 1 #>", "")
	require.NoError(t, err)
	assert.Contains(t, unit.Source, "//line "+emitter.AnonymousSourceName+":1")
	assert.Equal(t, 0, reg.Count())
}

func TestTransformText_AnonymousSourceFailureHasNoPath(t *testing.T) {
	tr, backend := newTestTransformer(t)
	backend.Diagnostics = []build.Diagnostic{
		{IsError: true, Filename: filepath.Join(t.TempDir(), emitter.AnonymousSourceName), Line: 2, Message: "undefined: y"},
	}

	_, err := tr.TransformText(context.Background(), "x\n<#= y #>", "")
	require.Error(t, err)
	assert.Equal(t, types.SourceReference{Line: 2}, errors.SourceOf(err))
}

func TestTransformText_PropertyCountMismatch(t *testing.T) {
	tr, backend := newTestTransformer(t)

	_, err := tr.TransformText(context.Background(), testutils.StandardTemplates["Properties"], "P.tt", "only one")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrPropertyCount)
	assert.Empty(t, backend.Requests(), "nothing is compiled")
}

func TestTransformText_InvalidValue(t *testing.T) {
	tr, _ := newTestTransformer(t)

	_, err := tr.TransformText(context.Background(), `<#@ property name="F" type="int" #>`, "", func() {})
	require.Error(t, err)

	var te *errors.TemplateError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, errors.CodeInvalidValue, te.Code)
}

func TestTransformText_CompileErrorIsTranslated(t *testing.T) {
	reg := registry.NewRegistry()
	source := `\\network\share\T.tt`
	tok, err := reg.Register(source)
	require.NoError(t, err)

	staging := t.TempDir()
	backend := &testutils.FakeBackend{Diagnostics: []build.Diagnostic{
		{IsError: false, Filename: "main.go", Line: 50, Message: "unused result", Code: "vet"},
		{IsError: true, Filename: "./" + tok.String(), Line: 42, Message: "undefined: y"},
		{IsError: true, Filename: "./" + tok.String(), Line: 45, Message: "later error"},
	}}
	tr, err := New(WithBackend(backend), WithRegistry(reg), WithStagingDir(staging), WithBaseDir(t.TempDir()))
	require.NoError(t, err)

	_, err = tr.TransformText(context.Background(), "<#= y #>", source)
	require.Error(t, err)
	assert.True(t, errors.IsTemplateFailure(err))
	assert.ErrorIs(t, err, errors.ErrTemplateFailure)
	assert.Equal(t, types.SourceReference{Path: source, Line: 42}, errors.SourceOf(err))
	assert.Contains(t, err.Error(), "undefined: y")

	warnings := tr.Warnings()
	require.Len(t, warnings, 1)
	assert.Equal(t, "unused result", warnings[0].Message)

	staged, err := os.ReadFile(filepath.Join(staging, tok.String()))
	require.NoError(t, err)
	assert.Equal(t, "<#= y #>", string(staged))
}

func TestTransformText_RuntimeFailureIsTranslated(t *testing.T) {
	tr, backend := newTestTransformer(t)
	path := filepath.Join(tr.BaseDir(), "Panics.tt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	backend.Failure = &build.Failure{Message: "index out of range", File: path, Line: 3, Panic: true}

	_, err := tr.TransformFile(context.Background(), "Panics.tt")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrRuntimeFailure)
	assert.Equal(t, types.SourceReference{Path: path, Line: 3}, errors.SourceOf(err))
}

func TestTransformText_CompileErrorFromBackend(t *testing.T) {
	tr, backend := newTestTransformer(t)
	backend.CompileErr = assert.AnError

	_, err := tr.TransformText(context.Background(), "x", "")
	assert.ErrorIs(t, err, assert.AnError)
}

func TestTransformFile_Missing(t *testing.T) {
	tr, _ := newTestTransformer(t)

	_, err := tr.TransformFile(context.Background(), "missing.tt")
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestTransformRelativeFile(t *testing.T) {
	tr, backend := newTestTransformer(t)
	sub := filepath.Join(tr.BaseDir(), "sub")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	testutils.WriteTemplate(t, tr.BaseDir(), "Top.tt", "top")
	first := testutils.WriteTemplate(t, sub, "First.tt", "first")
	testutils.WriteTemplate(t, sub, "Second.tt", "second")

	_, err := tr.TransformRelativeFile(context.Background(), "Top.tt")
	require.NoError(t, err, "resolves against the base dir before any transform")

	_, err = tr.TransformFile(context.Background(), first)
	require.NoError(t, err)

	_, err = tr.TransformRelativeFile(context.Background(), "Second.tt")
	require.NoError(t, err)

	requests := backend.Requests()
	require.Len(t, requests, 3)
	assert.Equal(t, filepath.Join(sub, "Second.tt"), requests[2].Unit.SourcePath)
}

func TestTransformText_EndToEnd(t *testing.T) {
	testutils.RequireGo(t)

	tr, err := New(
		WithBaseDir(t.TempDir()),
		WithRegistry(registry.NewRegistry()),
		WithStagingDir(t.TempDir()),
	)
	require.NoError(t, err)
	ctx := context.Background()

	out, err := tr.TransformText(ctx, testutils.StandardTemplates["Hello"], "")
	require.NoError(t, err)
	assert.Equal(t, "Hello World!", out)

	out, err = tr.TransformText(ctx, "\n\nText", "")
	require.NoError(t, err)
	assert.Equal(t, "\n\nText", out)

	out, err = tr.TransformText(ctx, testutils.StandardTemplates["Properties"], "", "Ada", 3)
	require.NoError(t, err)
	assert.Equal(t, "\n\nAda:3", out)

	forward, err := tr.TransformText(ctx, `<#@ property name="P1" type="int" #><#@ property name="P2" type="string" #><#= P1 #>:<#= P2 #>`, "", 5, "x")
	require.NoError(t, err)
	swapped, err := tr.TransformText(ctx, `<#@ property name="P2" type="string" #><#@ property name="P1" type="int" #><#= P1 #>:<#= P2 #>`, "", "x", 5)
	require.NoError(t, err)
	assert.Equal(t, "5:x", forward)
	assert.Equal(t, forward, swapped)

	path := filepath.Join(tr.BaseDir(), "Broken.tt")
	_, err = tr.TransformText(ctx, "line one\n<#= undefinedName #>", path)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrTemplateFailure)
	assert.Equal(t, path, errors.SourceOf(err).Path)
	assert.Equal(t, 2, errors.SourceOf(err).Line)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "parsed", StateParsed.String())
	assert.Equal(t, "State(99)", State(99).String())
}

func TestGenerateFileAndFragmentsFile(t *testing.T) {
	tr, _ := newTestTransformer(t)
	path := testutils.WriteTemplate(t, tr.BaseDir(), "File.tt", "a<#= 1 #>")

	unit, err := tr.GenerateFile("File.tt")
	require.NoError(t, err)
	assert.Equal(t, path, unit.SourcePath)
	assert.Contains(t, unit.Source, "Output.Write(1)")

	fragments, err := tr.FragmentsFile(path)
	require.NoError(t, err)
	require.Len(t, fragments, 2)
	assert.Equal(t, types.FragmentAutoWrite, fragments[1].Kind)

	_, err = tr.GenerateFile("missing.tt")
	assert.ErrorIs(t, err, fs.ErrNotExist)
}
