package definition

import (
	"bufio"
	"io"
	"os"
	"strings"
)

// ReadAutostart returns the service names listed in the file at path. Names
// are separated by any whitespace; the first token starting with '#' stops
// processing. A missing file yields an empty list.
func ReadAutostart(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return ParseAutostart(f)
}

// ParseAutostart reads names from r; see ReadAutostart.
func ParseAutostart(r io.Reader) ([]string, error) {
	sc := bufio.NewScanner(r)
	sc.Split(bufio.ScanWords)
	var names []string
	for sc.Scan() {
		tok := sc.Text()
		if strings.HasPrefix(tok, "#") {
			break
		}
		if i := strings.IndexByte(tok, '#'); i > 0 {
			names = append(names, tok[:i])
			break
		}
		names = append(names, tok)
	}
	return names, sc.Err()
}
