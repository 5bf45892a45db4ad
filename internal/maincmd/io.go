package maincmd

import (
	"os"
	"path/filepath"
	"sort"

	mmap "github.com/edsrzf/mmap-go"
)

// readFile memory-maps path read-only rather than copying it fully into a
// []byte (github.com/edsrzf/mmap-go, the same library saferwall-pe uses for
// its own file-backed parser): the entry file and any `.tape` chunk can be
// arbitrarily large, and the scanner/parser/asm.ReadChunk only ever need to
// read the bytes once, sequentially, so a copy buys nothing. The returned
// closer must be called once the caller is done reading.
func readFile(path string) ([]byte, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	if info.Size() == 0 {
		// mmap-go rejects a zero-length mapping; an empty file is valid
		// cassette source (an empty program), so fall back to an empty slice.
		return nil, f.Close, nil
	}
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	closer := func() error {
		uerr := m.Unmap()
		cerr := f.Close()
		if uerr != nil {
			return uerr
		}
		return cerr
	}
	return []byte(m), closer, nil
}

// stdlibModules lists the `.ct` files directly under dir (CASSETTE_STDLIB,
// spec.md §6.1), sorted for deterministic project ordering across runs.
func stdlibModules(dir string) ([]string, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".ct" {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// moduleName derives a project module's import name from its filename: the
// base name without extension, matching a `module Name` declaration's own
// name inside the file (spec.md §4.4 names a module after the declaration,
// but the CLI needs a name before parsing - the filename stands in, and
// compiler.CompileModule doesn't require the two to match).
func moduleName(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}
