package validator

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/rust"
)

func analyzeRust(src []byte) Verdict {
	tree, v := parse(rust.GetLanguage(), src)
	if !v.OK {
		return v
	}
	defer tree.Close()

	reason := walk(tree.RootNode(), func(n *sitter.Node) string {
		switch n.Type() {
		case "unsafe_block":
			return "unsafe block"

		case "foreign_mod_item", "extern_modifier":
			return "extern block"

		case "macro_invocation":
			if m := n.ChildByFieldName("macro"); m != nil && rustBlockedMacros[m.Content(src)] {
				return "inline assembly: " + m.Content(src) + "!"
			}

		case "attribute_item":
			text := n.Content(src)
			if strings.Contains(text, "no_mangle") || strings.Contains(text, "link_section") ||
				strings.Contains(text, "link(") {
				return "FFI attribute"
			}

		case "scoped_identifier", "scoped_type_identifier":
			if p := blockedRustPath(n.Content(src)); p != "" {
				return "blocked path: " + p
			}

		case "use_declaration":
			if arg := n.ChildByFieldName("argument"); arg != nil {
				if p := blockedRustPath(arg.Content(src)); p != "" {
					return "blocked import: " + p
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

func blockedRustPath(path string) string {
	path = strings.ReplaceAll(path, " ", "")
	for _, prefix := range rustBlockedPathPrefixes {
		if strings.HasPrefix(path, prefix) {
			return prefix
		}
	}
	return ""
}
