package executor

import (
	"strings"
	"testing"
	"time"

	"codepad/internal/job"
)

func testOptions() Options {
	return Options{
		Timeout:        7 * time.Second,
		CompileTimeout: 10 * time.Second,
		ChunkBytes:     4096,
		PollInterval:   10 * time.Millisecond,
		MaxMemoryMB:    300,
		MaxFileSizeMB:  1,
	}
}

func TestWrapDisabled(t *testing.T) {
	p := Policy{}
	argv := []string{"python3", "/tmp/x/main.py"}

	got := p.Wrap(argv, job.LangPython, testOptions())
	if len(got) != 2 || got[0] != "python3" {
		t.Errorf("empty policy must leave argv unchanged, got %v", got)
	}
}

func TestWrapShape(t *testing.T) {
	p := Policy{Binary: "/usr/bin/firejail", Profile: "/etc/firejail/codepad.profile"}
	argv := []string{"python3", "/tmp/x/main.py"}

	got := p.Wrap(argv, job.LangPython, testOptions())

	if got[0] != "/usr/bin/firejail" {
		t.Fatalf("argv[0] = %q, want wrapper binary", got[0])
	}
	joined := strings.Join(got, " ")
	for _, want := range []string{
		"--quiet",
		"--profile=/etc/firejail/codepad.profile",
		"--rlimit-cpu=7",
		"--rlimit-fsize=1048576",
		"--rlimit-as=314572800",
		"--timeout=00:00:07",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("wrapped argv missing %q: %v", want, got)
		}
	}

	// The original command rides at the tail, untouched.
	if got[len(got)-1] != "/tmp/x/main.py" || got[len(got)-2] != "python3" {
		t.Errorf("command not preserved at tail: %v", got)
	}
}

func TestWrapJavaScriptSkipsAddressLimit(t *testing.T) {
	p := Policy{Binary: "/usr/bin/firejail", Profile: "/p"}

	got := p.Wrap([]string{"node", "main.js"}, job.LangJavaScript, testOptions())
	if strings.Contains(strings.Join(got, " "), "--rlimit-as") {
		t.Errorf("node must not get an address-space rlimit: %v", got)
	}
}

func TestCommandTemplates(t *testing.T) {
	py := pythonCommand("/w/main.py")
	if py[0] != "python3" || py[len(py)-1] != "/w/main.py" {
		t.Errorf("python command = %v", py)
	}

	node := nodeCommand("/w/main.js")
	if node[0] != "node" || node[len(node)-1] != "/w/main.js" {
		t.Errorf("node command = %v", node)
	}
	if !strings.Contains(strings.Join(node, " "), "--disallow-code-generation-from-strings") {
		t.Errorf("node command missing eval hardening: %v", node)
	}
}
