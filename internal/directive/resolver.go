package directive

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/conneroisu/stt/internal/errors"
	"github.com/conneroisu/stt/internal/types"
)

// FileReader reads included templates.
type FileReader interface {
	ReadFile(name string) ([]byte, error)
}

// OSFileReader reads from the local filesystem.
type OSFileReader struct{}

// ReadFile implements FileReader.
func (OSFileReader) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

// State is everything directives contribute to one transform.
type State struct {
	// Language is the last template directive seen, nil when there was none.
	Language   *types.LanguageSpec
	Namespaces []types.NamespaceReference
	Properties []types.PropertyDeclaration
}

// LanguageOrDefault returns the selected language.
func (s *State) LanguageOrDefault() types.LanguageSpec {
	if s.Language == nil {
		return types.DefaultLanguage
	}
	return *s.Language
}

// Include is a resolved include directive.
type Include struct {
	Path string
	Text string
}

// Resolver dispatches directive fragments.
type Resolver struct {
	reader FileReader
}

// NewResolver creates a resolver reading includes through reader. A nil
// reader reads from the local filesystem.
func NewResolver(reader FileReader) *Resolver {
	if reader == nil {
		reader = OSFileReader{}
	}
	return &Resolver{reader: reader}
}

// Apply records a template, import or property directive in state.
func (r *Resolver) Apply(state *State, frag types.Fragment) error {
	switch frag.Kind {
	case types.FragmentTemplateDirective:
		values, err := Require(frag, "language")
		if err != nil {
			return err
		}
		lang, err := ParseLanguage(values[0])
		if err != nil {
			return withSource(err, frag)
		}
		state.Language = &lang

	case types.FragmentImportDirective:
		values, err := Require(frag, "namespace")
		if err != nil {
			return err
		}
		ns := strings.TrimSpace(values[0])
		if ns == "" {
			return errors.NewParseError(errors.CodeInvalidDirective, "import directive has an empty namespace", frag.Source())
		}
		state.Namespaces = append(state.Namespaces, types.NamespaceReference{
			Namespace: ns,
			Source:    frag.Source(),
		})

	case types.FragmentPropertyDirective:
		values, err := Require(frag, "name", "type")
		if err != nil {
			return err
		}
		name, typeName := strings.TrimSpace(values[0]), strings.TrimSpace(values[1])
		if name == "" || typeName == "" {
			return errors.NewParseError(errors.CodeInvalidDirective, "property directive needs a non-empty name and type", frag.Source())
		}
		state.Properties = append(state.Properties, types.PropertyDeclaration{
			Name:     name,
			TypeName: typeName,
			Source:   frag.Source(),
		})

	default:
		return fmt.Errorf("cannot apply %s fragment as a directive", frag.Kind)
	}
	return nil
}

// ResolveInclude reads the file named by an include directive. Relative
// names are resolved against dir. Read errors are returned unchanged.
func (r *Resolver) ResolveInclude(frag types.Fragment, dir string) (Include, error) {
	values, err := Require(frag, "file")
	if err != nil {
		return Include{}, err
	}
	name := strings.TrimSpace(values[0])
	if name == "" {
		return Include{}, errors.NewParseError(errors.CodeInvalidDirective, "include directive has an empty file", frag.Source())
	}

	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}

	data, err := r.reader.ReadFile(path)
	if err != nil {
		return Include{}, err
	}
	return Include{Path: path, Text: string(data)}, nil
}

func withSource(err error, frag types.Fragment) error {
	if te, ok := err.(*errors.TemplateError); ok && te.Source.IsEmpty() {
		return te.WithSource(frag.Source())
	}
	return err
}
