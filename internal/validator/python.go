package validator

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

func analyzePython(src []byte) Verdict {
	tree, v := parse(python.GetLanguage(), src)
	if !v.OK {
		return v
	}
	defer tree.Close()

	reason := walk(tree.RootNode(), func(n *sitter.Node) string {
		switch n.Type() {
		case "call":
			return checkPythonCall(n, src)

		case "identifier":
			// Direct references to the execution primitives are denied
			// even outside call position (e.g. f = eval).
			if pythonBlockedCalls[n.Content(src)] {
				return "blocked operation: " + n.Content(src)
			}

		case "import_statement":
			for i := 0; i < int(n.NamedChildCount()); i++ {
				child := n.NamedChild(i)
				name := child
				if child.Type() == "aliased_import" {
					name = child.ChildByFieldName("name")
				}
				if name != nil {
					if mod := rootModule(name.Content(src)); pythonBlockedModules[mod] {
						return "blocked module: " + mod
					}
				}
			}

		case "import_from_statement":
			if name := n.ChildByFieldName("module_name"); name != nil {
				if mod := rootModule(name.Content(src)); pythonBlockedModules[mod] {
					return "blocked module: " + mod
				}
			}

		case "attribute":
			// Attribute chains rooted at a blocked module name.
			if obj := n.ChildByFieldName("object"); obj != nil && obj.Type() == "identifier" {
				if pythonBlockedModules[obj.Content(src)] {
					return "access to blocked module: " + obj.Content(src)
				}
			}
		}
		return ""
	})

	if reason != "" {
		return reject(reason)
	}
	return accept()
}

func checkPythonCall(call *sitter.Node, src []byte) string {
	fn := call.ChildByFieldName("function")
	if fn == nil || fn.Type() != "identifier" {
		return ""
	}
	name := fn.Content(src)
	if pythonBlockedCalls[name] {
		return "blocked operation: " + name + "()"
	}
	if name == "open" && pythonOpenWrites(call, src) {
		return "open() with a write mode"
	}
	return ""
}

// pythonOpenWrites reports whether an open(...) call requests a writable
// mode, positionally or via mode=.
func pythonOpenWrites(call *sitter.Node, src []byte) bool {
	args := call.ChildByFieldName("arguments")
	if args == nil {
		return false
	}
	positional := 0
	for i := 0; i < int(args.NamedChildCount()); i++ {
		arg := args.NamedChild(i)
		switch arg.Type() {
		case "string":
			positional++
			if positional == 2 && stringModeWrites(arg.Content(src)) {
				return true
			}
		case "keyword_argument":
			key := arg.ChildByFieldName("name")
			val := arg.ChildByFieldName("value")
			if key != nil && val != nil && key.Content(src) == "mode" && stringModeWrites(val.Content(src)) {
				return true
			}
		default:
			positional++
		}
	}
	return false
}

func stringModeWrites(lit string) bool {
	return strings.ContainsAny(lit, "wax+")
}

func rootModule(dotted string) string {
	if i := strings.IndexByte(dotted, '.'); i >= 0 {
		return dotted[:i]
	}
	return dotted
}
