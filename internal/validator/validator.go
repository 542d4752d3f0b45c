// Package validator screens source snippets before any subprocess is
// spawned. Each language analyzer parses the source to a syntax tree and
// walks it against a denylist of constructs.
//
// Matching is syntactic, not semantic: rebinding a blocked identifier to
// a local name defeats the check. That is accepted. The sandbox wrapper
// is the enforcement boundary; the validator exists to keep casual misuse
// out of the hot path and to surface obvious disallowed intent early.
// Operators must not treat it as the sole defense.
package validator

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"codepad/internal/job"
)

// Verdict is the outcome of a validation pass.
type Verdict struct {
	OK     bool
	Reason string
}

func accept() Verdict { return Verdict{OK: true} }

func reject(reason string) Verdict { return Verdict{OK: false, Reason: reason} }

func rejectf(f string, a ...any) Verdict {
	return Verdict{OK: false, Reason: fmt.Sprintf(f, a...)}
}

type analyzer func(src []byte) Verdict

var analyzers = map[job.Language]analyzer{
	job.LangPython:     analyzePython,
	job.LangJavaScript: analyzeJavaScript,
	job.LangC:          analyzeC,
	job.LangCPP:        analyzeCPP,
	job.LangRust:       analyzeRust,
}

// Check validates a source snippet for the given language. It is a pure
// function of its inputs: deterministic, no I/O, and it never panics to
// the caller.
func Check(lang job.Language, source []byte) (v Verdict) {
	defer func() {
		if r := recover(); r != nil {
			v = rejectf("validation failed: %v", r)
		}
	}()

	if len(source) == 0 {
		return reject("empty source")
	}

	analyze, ok := analyzers[lang]
	if !ok {
		return reject("unsupported language")
	}
	return analyze(source)
}

// parse runs a tree-sitter parser over the source. A tree containing
// error nodes is reported as a syntax error at the first such line.
func parse(lang *sitter.Language, src []byte) (*sitter.Tree, Verdict) {
	parser := sitter.NewParser()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil || tree == nil {
		return nil, reject("syntax error at line 1")
	}

	root := tree.RootNode()
	if root.HasError() {
		line := firstErrorLine(root)
		tree.Close()
		return nil, rejectf("syntax error at line %d", line)
	}
	return tree, accept()
}

// walk visits every node depth-first until the callback returns a
// non-empty rejection reason.
func walk(n *sitter.Node, visit func(*sitter.Node) string) string {
	if reason := visit(n); reason != "" {
		return reason
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if reason := walk(n.Child(i), visit); reason != "" {
			return reason
		}
	}
	return ""
}

func firstErrorLine(root *sitter.Node) int {
	line := int(root.StartPoint().Row) + 1
	found := false
	walk(root, func(n *sitter.Node) string {
		if !found && (n.Type() == "ERROR" || n.IsMissing()) {
			line = int(n.StartPoint().Row) + 1
			found = true
		}
		return ""
	})
	return line
}
