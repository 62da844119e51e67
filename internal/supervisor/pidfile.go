package supervisor

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/opendap-hyrax/besd/internal/errs"
)

// WritePIDFile writes "PID: <n> UID: <n>" to path, mode 0644, per spec
// §6 ("File: PID file").
func WritePIDFile(path string) error {
	content := fmt.Sprintf("PID: %d UID: %d\n", os.Getpid(), os.Getuid())
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return errs.Wrap(errs.IOError, "write pid file", err)
	}
	return nil
}

// RemovePIDFile deletes path; a missing file is not an error, matching
// the normal-exit cleanup path which may race a prior manual removal.
func RemovePIDFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errs.Wrap(errs.IOError, "remove pid file", err)
	}
	return nil
}

// ReadPIDFile parses the "PID: <n> UID: <n>" format back into its two
// fields, for diagnostic tooling and tests.
func ReadPIDFile(path string) (pid, uid int, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, errs.Wrap(errs.IOError, "read pid file", err)
	}
	fields := strings.Fields(string(b))
	if len(fields) != 4 || fields[0] != "PID:" || fields[2] != "UID:" {
		return 0, 0, errs.New(errs.MalformedFrame, "malformed pid file contents")
	}
	pid, e1 := strconv.Atoi(fields[1])
	uid2, e2 := strconv.Atoi(fields[3])
	if e1 != nil || e2 != nil {
		return 0, 0, errs.New(errs.MalformedFrame, "malformed pid file numeric fields")
	}
	return pid, uid2, nil
}
