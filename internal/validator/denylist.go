package validator

// Per-language denylists. These tables name constructs, not behaviors:
// the check is syntactic (see the package comment).

var pythonBlockedCalls = map[string]bool{
	"eval":       true,
	"exec":       true,
	"compile":    true,
	"__import__": true,
}

var pythonBlockedModules = map[string]bool{
	"os":              true,
	"subprocess":      true,
	"socket":          true,
	"shutil":          true,
	"ctypes":          true,
	"multiprocessing": true,
	"sys":             true,
}

var jsBlockedModules = map[string]bool{
	"fs":             true,
	"child_process":  true,
	"net":            true,
	"dgram":          true,
	"cluster":        true,
	"worker_threads": true,
	"os":             true,
}

var ccppBlockedFunctions = map[string]bool{
	"system":  true,
	"execl":   true,
	"execle":  true,
	"execlp":  true,
	"execv":   true,
	"execve":  true,
	"execvp":  true,
	"execvpe": true,
	"popen":   true,
	"fork":    true,
	"vfork":   true,
	"socket":  true,
	"connect": true,
	"bind":    true,
	"listen":  true,
	"accept":  true,
	"ptrace":  true,
	"dlopen":  true,
	"dlsym":   true,
}

var ccppBlockedHeaders = map[string]bool{
	"unistd.h": true,
	"fcntl.h":  true,
	"dlfcn.h":  true,
	"netdb.h":  true,
}

var ccppBlockedHeaderPrefixes = []string{
	"sys/",
	"netinet/",
	"arpa/",
	"linux/",
}

var rustBlockedPathPrefixes = []string{
	"std::process",
	"std::net",
	"std::fs::write",
	"std::fs::File::create",
	"std::fs::OpenOptions",
	"std::fs::remove_file",
	"std::fs::remove_dir",
	"std::fs::rename",
	"std::fs::copy",
	"std::fs::create_dir",
	"std::fs::hard_link",
	"std::fs::set_permissions",
}

var rustBlockedMacros = map[string]bool{
	"asm":        true,
	"global_asm": true,
	"llvm_asm":   true,
}
