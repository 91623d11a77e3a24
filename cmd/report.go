package cmd

import (
	stderrors "errors"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/conneroisu/stt/internal/errors"
	"github.com/conneroisu/stt/internal/types"
)

var (
	errorColor    = color.New(color.FgRed, color.Bold)
	warningColor  = color.New(color.FgYellow, color.Bold)
	locationColor = color.New(color.Bold)
	successColor  = color.New(color.FgGreen)
)

// printFailure writes err the way compilers do: location first, then the
// message.
func printFailure(w io.Writer, err error) {
	label := "error"
	var te *errors.TemplateError
	if stderrors.As(err, &te) {
		switch te.Kind {
		case errors.KindRuntime:
			label = "runtime error"
		case errors.KindGeneration:
			label = "compile error"
		}
	}

	ref := errors.SourceOf(err)
	if !ref.IsEmpty() {
		locationColor.Fprintf(w, "%s: ", ref)
	}
	errorColor.Fprintf(w, "%s: ", label)
	fmt.Fprintln(w, message(err))
}

// message drops the location and code already printed by printFailure.
func message(err error) string {
	var te *errors.TemplateError
	if !stderrors.As(err, &te) {
		return err.Error()
	}
	if te.Cause != nil {
		return te.Message + ": " + te.Cause.Error()
	}
	return te.Message
}

func printWarnings(w io.Writer, diagnostics []types.Diagnostic) {
	for _, d := range diagnostics {
		ref := types.SourceReference{Path: d.Filename, Line: d.Line}
		if !ref.IsEmpty() {
			locationColor.Fprintf(w, "%s: ", ref)
		}
		warningColor.Fprint(w, "warning: ")
		fmt.Fprintln(w, d.Message)
	}
}
