package seccomp

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultProfile is the engine's standard confinement: no network, no
// ambient root, a private filesystem view, and a drop list covering the
// syscalls no submitted snippet has business making.
func DefaultProfile() *ProfileBuilder {
	return NewBuilder().
		NoNetwork().
		NoPrivileges().
		PrivateFilesystem().
		Directive("nodbus").
		Directive("nosound").
		Directive("novideo").
		Directive("nodvd").
		Directive("notv").
		Directive("nou2f").
		Directive("shell none").
		DropSyscalls(
			"ptrace", "process_vm_readv", "process_vm_writev",
			"kcmp", "perf_event_open", "bpf",
		).
		DropSyscalls(
			"mount", "umount", "umount2", "pivot_root", "chroot",
			"swapon", "swapoff",
		).
		DropSyscalls(
			"reboot", "kexec_load", "kexec_file_load",
			"init_module", "finit_module", "delete_module",
		).
		DropSyscalls(
			"keyctl", "add_key", "request_key",
			"userfaultfd", "memfd_secret",
			"personality", "ioperm", "iopl",
		).
		DropSyscalls(
			"setns", "unshare",
			"acct", "settimeofday", "clock_settime", "clock_adjtime",
			"adjtimex", "quotactl", "nfsservctl", "vhangup",
		)
}

// EnsureProfile writes the default profile at path unless one already
// exists. Operators who ship their own profile keep it.
func EnsureProfile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("checking profile %s: %w", path, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating profile directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(DefaultProfile().Render()), 0644); err != nil { // #nosec G306 -- profile is not a secret
		return fmt.Errorf("writing profile %s: %w", path, err)
	}
	return nil
}
