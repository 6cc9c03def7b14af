package definition

import (
	"bufio"
	"errors"
	"os"
	"strings"
)

// TableSource reads a single file with one service per line:
//
//	name program [args...]
//
// Fields are separated by whitespace. Lines starting with '#' and lines
// with fewer than two fields are skipped. The last line for a name wins.
type TableSource struct {
	Path string
}

func (s TableSource) Load(name string) ([]string, error) {
	all, err := s.All()
	if err != nil {
		return nil, unavailable(name, err)
	}
	argv, ok := all[name]
	if !ok {
		return nil, unavailable(name, errors.New("no such service"))
	}
	return argv, nil
}

// All returns every definition in the table.
func (s TableSource) All() (map[string][]string, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	out := make(map[string][]string)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || isComment(line) {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		out[fields[0]] = fields[1:]
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
