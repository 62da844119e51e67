package supervisor

import (
	"bufio"
	"os"
	"strings"

	"github.com/opendap-hyrax/besd/internal/errs"
)

// TailLogFile returns the last n lines of path, or the whole file when
// n is 0 (spec §4.7 "TailLog").
func TailLogFile(path string, n int) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errs.Wrap(errs.IOError, "open log file", err)
	}
	defer func() { _ = f.Close() }()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return "", errs.Wrap(errs.IOError, "scan log file", err)
	}

	if n <= 0 || n >= len(lines) {
		return strings.Join(lines, "\n"), nil
	}
	return strings.Join(lines[len(lines)-n:], "\n"), nil
}
