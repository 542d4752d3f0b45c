// Package seccomp builds the sandbox wrapper's profile: filesystem and
// network confinement directives plus a seccomp drop list of uncommon
// syscalls. The rendered profile is what the wrapper binary consumes via
// its --profile flag.
package seccomp

import (
	"fmt"
	"sort"
	"strings"
)

// ProfileBuilder accumulates profile directives.
type ProfileBuilder struct {
	directives []string
	drops      map[string]bool
}

func NewBuilder() *ProfileBuilder {
	return &ProfileBuilder{drops: make(map[string]bool)}
}

// Directive appends a raw profile line.
func (b *ProfileBuilder) Directive(line string) *ProfileBuilder {
	b.directives = append(b.directives, line)
	return b
}

// DropSyscalls adds names to the seccomp drop list.
func (b *ProfileBuilder) DropSyscalls(names ...string) *ProfileBuilder {
	for _, n := range names {
		b.drops[n] = true
	}
	return b
}

// NoNetwork removes all network access.
func (b *ProfileBuilder) NoNetwork() *ProfileBuilder {
	return b.Directive("net none").Directive("protocol unix")
}

// NoPrivileges drops root and forbids privilege re-acquisition.
func (b *ProfileBuilder) NoPrivileges() *ProfileBuilder {
	return b.
		Directive("caps.drop all").
		Directive("noroot").
		Directive("nonewprivs")
}

// PrivateFilesystem confines the process to a throwaway view rooted at
// its working directory.
func (b *ProfileBuilder) PrivateFilesystem() *ProfileBuilder {
	return b.
		Directive("private").
		Directive("private-dev").
		Directive("private-tmp").
		Directive("disable-mnt")
}

// Render produces the profile text. Drop entries are sorted so the
// output is stable across runs.
func (b *ProfileBuilder) Render() string {
	var sb strings.Builder
	sb.WriteString("# generated sandbox profile; do not edit in place\n")
	for _, d := range b.directives {
		sb.WriteString(d)
		sb.WriteByte('\n')
	}
	if len(b.drops) > 0 {
		names := make([]string, 0, len(b.drops))
		for n := range b.drops {
			names = append(names, n)
		}
		sort.Strings(names)
		fmt.Fprintf(&sb, "seccomp.drop %s\n", strings.Join(names, ","))
	}
	return sb.String()
}
