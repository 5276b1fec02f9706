// Package atomicwrite escribe archivos sin dejar contenido a medias: los
// seeds de firma y las listas que genera authctl.
package atomicwrite

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// WriteFile reemplaza path por data de forma atómica: escribe un temporal
// hermano, lo sincroniza, lo renombra y sincroniza el directorio. Si algo
// falla antes del rename, path no cambia.
func WriteFile(path string, data []byte, perm fs.FileMode) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	steps := []struct {
		name string
		fn   func() error
	}{
		{"chmod", func() error { return tmp.Chmod(perm) }},
		{"write", func() error { _, werr := tmp.Write(data); return werr }},
		{"fsync", tmp.Sync},
		{"close", tmp.Close},
		{"rename", func() error { return os.Rename(tmp.Name(), path) }},
	}
	for _, s := range steps {
		if err = s.fn(); err != nil {
			return fmt.Errorf("%s %s: %w", s.name, path, err)
		}
	}
	return syncDir(dir)
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	if err := d.Sync(); err != nil && !os.IsPermission(err) {
		return fmt.Errorf("fsync dir %s: %w", dir, err)
	}
	return nil
}
