package validator

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
)

func analyzeJavaScript(src []byte) Verdict {
	tree, v := parse(javascript.GetLanguage(), src)
	if !v.OK {
		return v
	}
	defer tree.Close()

	reason := walk(tree.RootNode(), func(n *sitter.Node) string {
		switch n.Type() {
		case "call_expression":
			return checkJSCall(n, src)

		case "new_expression":
			if ctor := n.ChildByFieldName("constructor"); ctor != nil &&
				ctor.Type() == "identifier" && ctor.Content(src) == "Function" {
				return "blocked constructor: Function"
			}

		case "member_expression":
			switch n.Content(src) {
			case "process.binding":
				return "blocked access: process.binding"
			case "globalThis.process":
				return "blocked access: globalThis.process"
			}
		}
		return ""
	})

	if reason != "" {
		return reject(reason)
	}
	return accept()
}

func checkJSCall(call *sitter.Node, src []byte) string {
	fn := call.ChildByFieldName("function")
	if fn == nil {
		return ""
	}

	switch fn.Type() {
	case "identifier":
		switch fn.Content(src) {
		case "eval":
			return "blocked operation: eval()"
		case "Function":
			return "blocked constructor: Function"
		case "require":
			if mod := firstStringArgument(call, src); jsBlockedModules[mod] {
				return "blocked module: " + mod
			}
		}

	case "member_expression":
		// Reflect.construct(Function, ...) reaches the denied
		// constructor without naming it in new-expression position.
		if fn.Content(src) == "Reflect.construct" {
			if args := call.ChildByFieldName("arguments"); args != nil && args.NamedChildCount() > 0 {
				first := args.NamedChild(0)
				if first.Type() == "identifier" && first.Content(src) == "Function" {
					return "blocked constructor: Function via Reflect.construct"
				}
			}
		}
	}
	return ""
}

func firstStringArgument(call *sitter.Node, src []byte) string {
	args := call.ChildByFieldName("arguments")
	if args == nil || args.NamedChildCount() == 0 {
		return ""
	}
	first := args.NamedChild(0)
	if first.Type() != "string" {
		return ""
	}
	return strings.Trim(first.Content(src), `"'`)
}
