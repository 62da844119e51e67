package supervisor

import (
	"os"
	"sort"
	"strconv"
	"sync"

	"github.com/opendap-hyrax/besd/internal/errs"
)

// ConfigRegistry maps logical module names to file paths and implements
// the atomic replace protocol of spec §4.7 ("SetConfig"): first write of
// a daemon instance backs up the original to "<path>.<pid>", subsequent
// writes skip that step.
type ConfigRegistry struct {
	pid int

	mu        sync.Mutex
	paths     map[string]string
	backedUp  map[string]bool
}

// NewConfigRegistry builds an empty registry bound to the current
// process's pid for backup file naming.
func NewConfigRegistry() *ConfigRegistry {
	return &ConfigRegistry{
		pid:      os.Getpid(),
		paths:    make(map[string]string),
		backedUp: make(map[string]bool),
	}
}

// Register associates a logical module name with a file path.
func (r *ConfigRegistry) Register(module, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths[module] = path
}

// Modules lists registered module names in sorted order, so GetConfig
// output is deterministic.
func (r *ConfigRegistry) Modules() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.paths))
	for m := range r.paths {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Read returns the current file content for module.
func (r *ConfigRegistry) Read(module string) (string, error) {
	r.mu.Lock()
	path, ok := r.paths[module]
	r.mu.Unlock()
	if !ok {
		return "", errs.New(errs.SyntaxUser, "unknown config module: "+module)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", errs.Wrap(errs.IOError, "read config module "+module, err)
	}
	return string(b), nil
}

// Write performs the rename-based replace protocol: write content to
// "<path>.tmp", back up the pre-existing file to "<path>.<pid>" on the
// first write of this process's lifetime for that module, then rename
// the tmp file onto path.
func (r *ConfigRegistry) Write(module, content string) error {
	r.mu.Lock()
	path, ok := r.paths[module]
	alreadyBackedUp := r.backedUp[module]
	r.mu.Unlock()
	if !ok {
		return errs.New(errs.SyntaxUser, "unknown config module: "+module)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return errs.Wrap(errs.IOError, "write temp config", err)
	}

	if !alreadyBackedUp {
		backup := path + "." + strconv.Itoa(r.pid)
		if _, err := os.Stat(path); err == nil {
			if err := os.Rename(path, backup); err != nil {
				return errs.Wrap(errs.IOError, "backup existing config", err)
			}
		}
		r.mu.Lock()
		r.backedUp[module] = true
		r.mu.Unlock()
	}

	if err := os.Rename(tmp, path); err != nil {
		return errs.Wrap(errs.IOError, "replace config", err)
	}
	return nil
}
