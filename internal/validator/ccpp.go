package validator

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
)

func analyzeC(src []byte) Verdict {
	tree, v := parse(c.GetLanguage(), src)
	if !v.OK {
		return v
	}
	defer tree.Close()
	return ccppVerdict(tree.RootNode(), src)
}

func analyzeCPP(src []byte) Verdict {
	tree, v := parse(cpp.GetLanguage(), src)
	if !v.OK {
		return v
	}
	defer tree.Close()
	return ccppVerdict(tree.RootNode(), src)
}

func ccppVerdict(root *sitter.Node, src []byte) Verdict {
	reason := walk(root, func(n *sitter.Node) string {
		switch n.Type() {
		case "preproc_include":
			if path := n.ChildByFieldName("path"); path != nil {
				header := strings.Trim(path.Content(src), `<>"`)
				if blockedHeader(header) {
					return "blocked header: " + header
				}
			}

		case "call_expression":
			return checkCCall(n, src)

		case "gnu_asm_expression", "gnu_asm_statement", "asm_statement":
			return "inline assembly"
		}
		return ""
	})

	if reason != "" {
		return reject(reason)
	}
	return accept()
}

func checkCCall(call *sitter.Node, src []byte) string {
	fn := call.ChildByFieldName("function")
	if fn == nil {
		return ""
	}

	name := fn.Content(src)
	// Strip a std:: qualifier so std::system matches too.
	if i := strings.LastIndex(name, "::"); i >= 0 {
		name = name[i+2:]
	}

	if ccppBlockedFunctions[name] {
		return "blocked function: " + name + "()"
	}

	// mmap is only denied when it requests an executable mapping.
	if name == "mmap" {
		if args := call.ChildByFieldName("arguments"); args != nil &&
			strings.Contains(args.Content(src), "PROT_EXEC") {
			return "blocked function: mmap() with PROT_EXEC"
		}
	}

	if name == "asm" || name == "__asm__" {
		return "inline assembly"
	}
	return ""
}

func blockedHeader(header string) bool {
	if ccppBlockedHeaders[header] {
		return true
	}
	for _, prefix := range ccppBlockedHeaderPrefixes {
		if strings.HasPrefix(header, prefix) {
			return true
		}
	}
	return false
}
