package definition

import (
	"bufio"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// DirSource keeps one file per service under Dir. Each line of the file is
// one argv element; a blank line or a line starting with '#' ends the list.
type DirSource struct {
	Dir string
}

func (s DirSource) Load(name string) ([]string, error) {
	if !validName(name) {
		return nil, unavailable(name, errors.New("invalid service name"))
	}
	f, err := os.Open(filepath.Join(s.Dir, name))
	if err != nil {
		return nil, unavailable(name, err)
	}
	defer func() { _ = f.Close() }()

	var argv []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || isComment(line) {
			break
		}
		argv = append(argv, line)
	}
	if err := sc.Err(); err != nil {
		return nil, unavailable(name, err)
	}
	if len(argv) == 0 {
		return nil, unavailable(name, errors.New("empty definition"))
	}
	return argv, nil
}

// validName rejects names that would escape the definitions directory.
func validName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && !strings.ContainsRune(name, 0)
}
