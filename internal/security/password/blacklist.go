package password

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Blacklist es un set de passwords prohibidas, comparadas sin distinguir
// mayúsculas. Es inmutable después de cargarla; un *Blacklist nil no
// contiene nada.
type Blacklist struct {
	entries map[string]struct{}
}

// LoadBlacklist lee un archivo con una password por línea. Las líneas
// vacías y las que empiezan con # se ignoran.
func LoadBlacklist(path string) (*Blacklist, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	bl, err := ReadBlacklist(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return bl, nil
}

func ReadBlacklist(r io.Reader) (*Blacklist, error) {
	entries := map[string]struct{}{}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := normalize(sc.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		entries[line] = struct{}{}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return &Blacklist{entries: entries}, nil
}

func (b *Blacklist) Contains(pwd string) bool {
	if b == nil {
		return false
	}
	_, ok := b.entries[normalize(pwd)]
	return ok
}

func (b *Blacklist) Len() int {
	if b == nil {
		return 0
	}
	return len(b.entries)
}

func normalize(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
