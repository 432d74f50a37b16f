// Package pseudo is an interpreter for a small pedagogical pseudocode
// language: Module/Function subroutines, Declare/Constant variables, Set,
// Display/Input, If/While/Do/For control flow. The package ties the lexer,
// parser, evaluator, formatter and flowchart extractor together behind a
// source-in, effects-out API; drivers supply a Host for Display/Input and
// cancellation.
package pseudo

import (
	"github.com/edulang/pseudo/ast"
	"github.com/edulang/pseudo/flowchart"
	"github.com/edulang/pseudo/parser"
	pruntime "github.com/edulang/pseudo/runtime"
)

// Parse returns the AST for tooling use.
func Parse(source string) (*ast.Program, error) {
	return parser.Parse(source)
}

// Run parses and executes source to completion against host.
func Run(source string, host pruntime.Host) error {
	program, err := parser.Parse(source)
	if err != nil {
		return err
	}
	return pruntime.New(program, host).Run()
}

// RunSeeded is Run with a fixed random seed, for reproducible programs that
// use random().
func RunSeeded(source string, host pruntime.Host, seed int64) error {
	program, err := parser.Parse(source)
	if err != nil {
		return err
	}
	ev := pruntime.New(program, host)
	ev.Seed(seed)
	return ev.Run()
}

// Debug parses source and returns a stepper paused before the first
// statement. The caller drains it with Next or releases it with Close.
func Debug(source string, host pruntime.Host) (*pruntime.Stepper, error) {
	program, err := parser.Parse(source)
	if err != nil {
		return nil, err
	}
	return pruntime.NewStepper(program, host), nil
}

// Flowchart parses source and extracts the node/edge graph.
func Flowchart(source string) (*flowchart.Graph, error) {
	program, err := parser.Parse(source)
	if err != nil {
		return nil, err
	}
	return flowchart.Build(program), nil
}
