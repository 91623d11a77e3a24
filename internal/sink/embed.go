package sink

import (
	"embed"
	"fmt"
	"regexp"
)

//go:embed writer.go host.go serve.go
var supportFS embed.FS

// MainFileName is the name of the generated program's main function file.
const MainFileName = "stt_main.go"

const mainStub = `package main

import "os"

func main() {
	out := os.Stdout
	os.Stdout = os.Stderr
	os.Exit(serveTemplate(os.Stdin, out, os.Stderr, newTemplate))
}
`

var packageClause = regexp.MustCompile(`(?m)^package sink$`)

var supportNames = map[string]string{
	"writer.go": "stt_sink_writer.go",
	"host.go":   "stt_sink_host.go",
	"serve.go":  "stt_sink_serve.go",
}

// SupportFiles returns the runtime sources a generated module needs besides
// the composed unit, rewritten into package main and keyed by file name.
func SupportFiles() (map[string][]byte, error) {
	files := map[string][]byte{MainFileName: []byte(mainStub)}

	for src, dst := range supportNames {
		data, err := supportFS.ReadFile(src)
		if err != nil {
			return nil, fmt.Errorf("reading embedded %s: %w", src, err)
		}
		loc := packageClause.FindIndex(data)
		if loc == nil {
			return nil, fmt.Errorf("embedded %s has no package clause to rewrite", src)
		}
		rewritten := make([]byte, 0, len(data))
		rewritten = append(rewritten, data[:loc[0]]...)
		rewritten = append(rewritten, "package main"...)
		rewritten = append(rewritten, data[loc[1]:]...)
		files[dst] = rewritten
	}
	return files, nil
}
