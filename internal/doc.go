// Package internal contains the core implementation packages for stt.
//
// This package follows Go's internal package convention, making these
// packages unavailable for import by external modules while providing
// all the core functionality for the stt CLI tool.
//
// # Package Organization
//
// The internal packages are organized by pipeline stage:
//
//   - scanner: Remark suppression, line indexing and fragment scanning
//   - directive: Attribute parsing for template, import, property and include directives
//   - emitter: Go source generation with //line markers back to the template
//   - registry: Provenance tokens for templates loaded from non-local paths
//   - build: Go toolchain backend with an on-disk LRU artifact cache
//   - sink: Output writer and request protocol compiled into every template program
//   - transformer: The parse, build and run cycle behind every transformation
//   - services: Batch rendering and project initialization for the commands
//   - watcher: File system monitoring with debouncing
//   - config, logging, errors, validation, version: Ambient support
//
// # Data Flow
//
// A transformation moves through the packages in one direction:
//
//   - The scanner cuts template text into fragments
//   - The transformer expands includes and applies directives
//   - The emitter turns the remaining fragments into a Go program
//   - The build backend compiles that program and runs it once
//   - Compiler diagnostics and runtime panics come back as template locations
//
// # Security Considerations
//
// Templates are programs and run with the caller's permissions. The
// validation package only guards the values stt itself hands to the Go
// toolchain: the go binary and module requirements.
//
// For detailed documentation, see the individual package documentation.
package internal
