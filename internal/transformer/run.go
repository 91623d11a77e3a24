package transformer

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/conneroisu/stt/internal/build"
	"github.com/conneroisu/stt/internal/directive"
	"github.com/conneroisu/stt/internal/emitter"
	"github.com/conneroisu/stt/internal/errors"
	"github.com/conneroisu/stt/internal/logging"
	"github.com/conneroisu/stt/internal/scanner"
	"github.com/conneroisu/stt/internal/types"
)

// State is the lifecycle state of one transform call.
type State int

const (
	StateCreated State = iota
	StateParsing
	StateParsed
	StateExecuting
	StateCompleted
	StateFailed
)

var stateNames = map[State]string{
	StateCreated:   "created",
	StateParsing:   "parsing",
	StateParsed:    "parsed",
	StateExecuting: "executing",
	StateCompleted: "completed",
	StateFailed:    "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// run is the state of one transform call.
type run struct {
	t          *Transformer
	sourcePath string
	state      State
	logger     logging.Logger

	provenance *emitter.Provenance
	directives directive.State
	unit       *types.GeneratedUnit
	warnings   []types.Diagnostic
}

// parseContext is one entry of the include stack.
type parseContext struct {
	sourcePath string
	dir        string
	fragments  []types.Fragment
	next       int
}

func (t *Transformer) newRun(sourcePath string) *run {
	r := &run{
		t:          t,
		sourcePath: sourcePath,
		state:      StateCreated,
		logger:     t.logger.With("source", sourcePath),
	}
	if t.provenance {
		r.provenance = emitter.NewProvenance(t.registry, t.stagingDir)
	}
	return r
}

func (r *run) transition(ctx context.Context, to State) {
	r.logger.Debug(ctx, "Transform state changed", "from", r.state.String(), "to", to.String())
	r.state = to
}

func (r *run) fail(ctx context.Context, err error) error {
	r.transition(ctx, StateFailed)
	return err
}

// transform runs every phase.
func (r *run) transform(ctx context.Context, text string, values []any) (string, error) {
	if err := r.parse(ctx, text); err != nil {
		return "", err
	}
	return r.execute(ctx, values)
}

// parse moves the run from Created to Parsed.
func (r *run) parse(ctx context.Context, text string) error {
	r.transition(ctx, StateParsing)

	fragments, err := r.collect(text)
	if err != nil {
		return r.fail(ctx, err)
	}
	if err := r.route(fragments); err != nil {
		return r.fail(ctx, err)
	}

	r.transition(ctx, StateParsed)
	return nil
}

// collect scans text and expands includes in place, keeping an explicit
// stack of parse contexts.
func (r *run) collect(text string) ([]types.Fragment, error) {
	if err := r.stage(r.sourcePath, text); err != nil {
		return nil, err
	}

	root, _ := scanner.Parse(text, r.sourcePath)
	stack := []*parseContext{{
		sourcePath: r.sourcePath,
		dir:        r.t.dirOf(r.sourcePath),
		fragments:  root,
	}}

	var out []types.Fragment
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		if top.next >= len(top.fragments) {
			stack = stack[:len(stack)-1]
			continue
		}
		frag := top.fragments[top.next]
		top.next++

		if frag.Kind != types.FragmentIncludeDirective {
			out = append(out, frag)
			continue
		}

		if len(stack) > MaxIncludeDepth {
			return nil, errors.NewConfigurationError(
				errors.CodeIncludeDepth,
				fmt.Sprintf("includes nested deeper than %d", MaxIncludeDepth),
			).WithSource(frag.Source())
		}

		inc, err := r.t.resolver.ResolveInclude(frag, top.dir)
		if err != nil {
			if _, ok := err.(*errors.TemplateError); ok {
				return nil, err
			}
			return nil, errors.NewIOError("", "reading include", err).WithSource(frag.Source())
		}

		for _, pc := range stack {
			if samePath(r.t.resolvePath(pc.sourcePath), inc.Path) {
				return nil, errors.NewConfigurationError(
					errors.CodeIncludeCycle,
					fmt.Sprintf("%s includes itself", inc.Path),
				).WithSource(frag.Source())
			}
		}

		if err := r.stage(inc.Path, inc.Text); err != nil {
			return nil, err
		}
		fragments, _ := scanner.Parse(inc.Text, inc.Path)
		stack = append(stack, &parseContext{
			sourcePath: inc.Path,
			dir:        r.t.dirOf(inc.Path),
			fragments:  fragments,
		})
	}

	return out, nil
}

func (r *run) stage(path, text string) error {
	if r.provenance == nil {
		return nil
	}
	return r.provenance.AddSource(path, text)
}

// route applies directives and hands every other fragment to the emitter.
// Template directives go first so the emitter matches the final language.
func (r *run) route(fragments []types.Fragment) error {
	for _, frag := range fragments {
		if frag.Kind == types.FragmentTemplateDirective {
			if err := r.t.resolver.Apply(&r.directives, frag); err != nil {
				return err
			}
		}
	}

	lang := r.directives.LanguageOrDefault()
	em, err := emitter.New(lang, emitter.Options{
		Provenance: r.provenance,
		SourcePath: r.sourcePath,
	})
	if err != nil {
		return err
	}
	body := em.Statements()

	for _, frag := range fragments {
		switch frag.Kind {
		case types.FragmentMarkup:
			emitMarkup(body, frag)
		case types.FragmentScript:
			body.EmitRawFragment(frag.Text, frag.StartLine, frag.SourcePath)
		case types.FragmentAutoWrite:
			body.EmitExpressionWrite(strings.TrimSpace(frag.Text), frag.StartLine, frag.SourcePath)
		case types.FragmentClassBody:
			em.EmitClassMember(frag.Text, frag.StartLine, frag.SourcePath)
		case types.FragmentImportDirective:
			if err := r.t.resolver.Apply(&r.directives, frag); err != nil {
				return err
			}
			em.AddNamespace(r.directives.Namespaces[len(r.directives.Namespaces)-1])
		case types.FragmentPropertyDirective:
			if err := r.t.resolver.Apply(&r.directives, frag); err != nil {
				return err
			}
		}
	}

	if err := em.SetProperties(r.directives.Properties); err != nil {
		return err
	}

	r.unit = &types.GeneratedUnit{
		Language:   lang,
		Source:     em.Compose(),
		SourcePath: r.sourcePath,
		Namespaces: r.directives.Namespaces,
		Properties: r.directives.Properties,
	}
	return nil
}

// emitMarkup writes leading blank lines one at a time, then the rest of the
// markup as literal text.
func emitMarkup(body emitter.Statements, frag types.Fragment) {
	text, line := frag.Text, frag.StartLine
	for {
		if strings.HasPrefix(text, "\r\n") {
			body.EmitNewLine("\r", line, frag.SourcePath)
			text = text[2:]
		} else if strings.HasPrefix(text, "\n") {
			body.EmitNewLine("", line, frag.SourcePath)
			text = text[1:]
		} else {
			break
		}
		line++
	}
	if text != "" {
		body.EmitLiteralWrite(text, line, frag.SourcePath)
	}
}

// execute compiles and runs the composed unit.
func (r *run) execute(ctx context.Context, values []any) (string, error) {
	r.transition(ctx, StateExecuting)

	if got, want := len(values), len(r.directives.Properties); got != want {
		return "", r.fail(ctx, errors.NewConfigurationError(
			errors.CodePropertyCount,
			fmt.Sprintf("template declares %d properties but %d values were supplied", want, got),
		).WithSource(types.SourceReference{Path: r.sourcePath}))
	}
	encoded, err := encodeValues(values)
	if err != nil {
		return "", r.fail(ctx, err)
	}

	compilation, err := r.t.backend.Compile(ctx, build.CompileRequest{Unit: r.unit, Modules: r.t.modules})
	if err != nil {
		return "", r.fail(ctx, err)
	}

	warnings, err := r.t.translate(compilation.Diagnostics)
	r.warnings = warnings
	for _, w := range warnings {
		r.logger.Warn(ctx, nil, w.Message, "file", w.Filename, "line", w.Line, "code", w.Code)
	}
	if err != nil {
		if compilation.Artifact != nil {
			compilation.Artifact.Close()
		}
		return "", r.fail(ctx, err)
	}
	if compilation.Artifact == nil {
		return "", r.fail(ctx, fmt.Errorf("backend produced no artifact and no error"))
	}
	defer compilation.Artifact.Close()

	execution, err := compilation.Artifact.Run(ctx, build.Invocation{
		Context:    r.t.contextJSON,
		Properties: encoded,
		SourcePath: r.sourcePath,
		Trim:       r.t.trim,
	})
	if err != nil {
		return "", r.fail(ctx, err)
	}
	if execution.Failure != nil {
		return "", r.fail(ctx, r.t.translateFailure(execution.Failure))
	}

	r.transition(ctx, StateCompleted)
	return execution.Output, nil
}

// samePath compares cleaned local paths exactly and other names without
// regard to case.
func samePath(a, b string) bool {
	if emitter.IsLocalPath(a) && emitter.IsLocalPath(b) {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return strings.EqualFold(a, b)
}
