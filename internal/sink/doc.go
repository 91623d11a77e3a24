// Package sink is the runtime side of a generated template program.
//
// writer.go, host.go and serve.go are compiled twice: natively as package
// sink, and copied into every generated module as package main, next to the
// composed template. They must only import the standard library.
package sink
