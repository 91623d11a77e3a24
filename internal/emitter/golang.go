package emitter

import (
	"fmt"
	"go/token"
	"strconv"
	"strings"

	"github.com/conneroisu/stt/internal/errors"
	"github.com/conneroisu/stt/internal/types"
)

// Names the composed unit shares with the sink runtime files.
const (
	goOutputType   = "OutputWriter"
	goHostType     = "Host"
	goValuesType   = "propertyValues"
	goEntryType    = "entrypoint"
	goEntryVar     = "newTemplate"
	goTemplateType = "Template"
)

// reservedProperties collide with the Template handles or the receiver.
var reservedProperties = map[string]bool{
	"Output":  true,
	"Context": true,
	"Host":    true,
	"t":       true,
	"values":  true,
}

// entry is one piece of generated source. Entries with a source line get a
// line marker; entries without one are scaffold.
type entry struct {
	text string
	line int
	path string
}

type goStatements struct {
	entries []entry
}

func (s *goStatements) add(text string, line int, path string) {
	s.entries = append(s.entries, entry{text: text, line: line, path: path})
}

// EmitLiteralWrite writes one Output.Write call per line of text.
func (s *goStatements) EmitLiteralWrite(text string, line int, path string) {
	parts := strings.Split(text, "\n")
	for i, part := range parts {
		last := i == len(parts)-1
		if last && part == "" {
			break
		}
		if !last {
			part += "\n"
		}
		s.add("Output.Write("+strconv.Quote(part)+")", line+i, path)
	}
}

// EmitNewLine writes a blank line; terminator is "" or "\r".
func (s *goStatements) EmitNewLine(terminator string, line int, path string) {
	if terminator == "" {
		s.add("Output.WriteLine()", line, path)
		return
	}
	s.add("Output.WriteLine("+strconv.Quote(terminator)+")", line, path)
}

func (s *goStatements) EmitExpressionWrite(expr string, line int, path string) {
	s.add("Output.Write("+expr+")", line, path)
}

func (s *goStatements) EmitRawFragment(text string, line int, path string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	s.add(text, line, path)
}

func (s *goStatements) Len() int {
	return len(s.entries)
}

type goEmitter struct {
	spec       types.LanguageSpec
	provenance *Provenance
	sourcePath string

	namespaces []types.NamespaceReference
	properties []types.PropertyDeclaration
	members    []entry
	body       *goStatements
}

func newGoEmitter(spec types.LanguageSpec, opts Options) Emitter {
	return &goEmitter{
		spec:       spec,
		provenance: opts.Provenance,
		sourcePath: opts.SourcePath,
		body:       &goStatements{},
	}
}

func (e *goEmitter) Statements() Statements {
	return e.body
}

// AddNamespace adds an import. The same import path with the same alias is
// only imported once.
func (e *goEmitter) AddNamespace(ns types.NamespaceReference) {
	for _, existing := range e.namespaces {
		if strings.Join(strings.Fields(existing.Namespace), " ") == strings.Join(strings.Fields(ns.Namespace), " ") {
			return
		}
	}
	e.namespaces = append(e.namespaces, ns)
}

// SetProperties replaces the declared properties. Names must be exported or
// unexported Go identifiers that do not shadow the template handles.
func (e *goEmitter) SetProperties(props []types.PropertyDeclaration) error {
	seen := make(map[string]bool, len(props))
	for _, p := range props {
		switch {
		case !token.IsIdentifier(p.Name):
			return errors.NewParseError(errors.CodeInvalidDirective,
				fmt.Sprintf("property name %q is not a Go identifier", p.Name), p.Source)
		case reservedProperties[p.Name]:
			return errors.NewParseError(errors.CodeInvalidDirective,
				fmt.Sprintf("property name %q is reserved", p.Name), p.Source)
		case seen[p.Name]:
			return errors.NewParseError(errors.CodeInvalidDirective,
				fmt.Sprintf("property %q is declared twice", p.Name), p.Source)
		}
		seen[p.Name] = true
	}
	e.properties = append([]types.PropertyDeclaration(nil), props...)
	return nil
}

func (e *goEmitter) EmitClassMember(text string, line int, path string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	e.members = append(e.members, entry{text: text, line: line, path: path})
}

// Compose renders the unit. It only reads emitter state, so calling it
// twice yields the same text.
func (e *goEmitter) Compose() string {
	w := &unitWriter{provenance: e.provenance, line: 1}

	header := "// Code generated by stt. DO NOT EDIT."
	if e.sourcePath != "" {
		header = fmt.Sprintf("// Code generated by stt from %s. DO NOT EDIT.", strings.NewReplacer("\r", " ", "\n", " ").Replace(e.sourcePath))
	}
	w.scaffold(header)
	w.scaffold("")
	w.scaffold("package main")
	w.scaffold("")

	if len(e.namespaces) > 0 {
		w.scaffold("import (")
		for _, ns := range e.namespaces {
			w.mapped("\t"+importSpec(ns.Namespace), ns.Source.Line, ns.Source.Path)
		}
		w.scaffold(")")
		w.scaffold("")
	}

	w.scaffold("// " + goTemplateType + " is the composed template.")
	w.scaffold("type " + goTemplateType + " struct {")
	w.scaffold("\tOutput  *" + goOutputType)
	w.scaffold("\tContext any")
	w.scaffold("\tHost    *" + goHostType)
	for _, p := range e.properties {
		w.mapped("\t"+p.Name+" "+p.TypeName, p.Source.Line, p.Source.Path)
	}
	w.scaffold("}")
	w.scaffold("")

	w.scaffold("// Initialize hands the template its output, context and host.")
	w.scaffold("func (t *" + goTemplateType + ") Initialize(output *" + goOutputType + ", context any, host *" + goHostType + ") {")
	w.scaffold("\tt.Output, t.Context, t.Host = output, context, host")
	w.scaffold("}")
	w.scaffold("")

	e.composeBinding(w)

	for _, m := range e.members {
		w.mapped(m.text, m.line, m.path)
		w.scaffold("")
	}

	w.scaffold("// TransformText writes the template output.")
	w.scaffold("func (t *" + goTemplateType + ") TransformText() {")
	w.scaffold("\tOutput, Context, Host := t.Output, t.Context, t.Host")
	w.scaffold("\t_, _, _ = Output, Context, Host")
	for _, p := range e.properties {
		w.scaffold("\t" + p.Name + " := t." + p.Name)
		w.scaffold("\t_ = " + p.Name)
	}
	for _, s := range e.body.entries {
		w.mapped(s.text, s.line, s.path)
	}
	w.scaffold("}")
	w.scaffold("")

	w.scaffold("func init() {")
	w.scaffold("\t" + goEntryVar + " = func() " + goEntryType + " { return new(" + goTemplateType + ") }")
	w.scaffold("}")

	return w.String()
}

func (e *goEmitter) composeBinding(w *unitWriter) {
	params := make([]string, len(e.properties))
	for i, p := range e.properties {
		params[i] = p.Name + " " + p.TypeName
	}

	w.scaffold("// BindProperties assigns the declared properties in declaration order.")
	w.scaffold("func (t *" + goTemplateType + ") BindProperties(" + strings.Join(params, ", ") + ") {")
	for _, p := range e.properties {
		w.scaffold("\tt." + p.Name + " = " + p.Name)
	}
	w.scaffold("}")
	w.scaffold("")

	w.scaffold("func (t *" + goTemplateType + ") propertyCount() int { return " + strconv.Itoa(len(e.properties)) + " }")
	w.scaffold("")

	w.scaffold("func (t *" + goTemplateType + ") bindPropertyValues(values " + goValuesType + ") error {")
	args := make([]string, len(e.properties))
	for i, p := range e.properties {
		args[i] = "p" + strconv.Itoa(i)
		w.scaffold("\tvar " + args[i] + " " + p.TypeName)
		w.scaffold("\tif err := values.decode(" + strconv.Itoa(i) + ", &" + args[i] + "); err != nil {")
		w.scaffold("\t\treturn err")
		w.scaffold("\t}")
	}
	w.scaffold("\tt.BindProperties(" + strings.Join(args, ", ") + ")")
	w.scaffold("\treturn nil")
	w.scaffold("}")
	w.scaffold("")
}

// importSpec turns "strings" or "str strings" into an import spec.
func importSpec(namespace string) string {
	fields := strings.Fields(namespace)
	switch len(fields) {
	case 0:
		return `_ ""`
	case 1:
		return strconv.Quote(fields[0])
	default:
		return fields[0] + " " + strconv.Quote(fields[len(fields)-1])
	}
}

// unitWriter tracks physical line numbers so scaffold after template code
// can be mapped back to the unit itself.
type unitWriter struct {
	b          strings.Builder
	provenance *Provenance
	line       int
	remapped   bool
}

func (w *unitWriter) raw(text string) {
	w.b.WriteString(text)
	w.b.WriteByte('\n')
	w.line += strings.Count(text, "\n") + 1
}

func (w *unitWriter) scaffold(text string) {
	if w.remapped {
		w.raw("//line " + UnitFileName + ":" + strconv.Itoa(w.line+1))
		w.remapped = false
	}
	w.raw(text)
}

func (w *unitWriter) mapped(text string, line int, path string) {
	if w.provenance != nil && line > 0 && strings.TrimSpace(text) != "" {
		w.raw("//line " + w.provenance.MarkerPath(path) + ":" + strconv.Itoa(line))
		w.remapped = true
	}
	w.raw(text)
}

func (w *unitWriter) String() string {
	return w.b.String()
}
