package maincmd

import (
	"github.com/mna/cassette/lang/vm"
)

// loadedFile is one source file read into memory, with its closer retained
// so the caller can release the mapping once compilation is done.
type loadedFile struct {
	path   string
	src    []byte
	closer func() error
}

// gatherProject resolves the full module list for a project (spec.md
// §6.1): the entry file is returned separately (it may be source or a
// pre-compiled chunk, which the caller must check for itself), extraArgs
// are the additional command-line files, and CASSETTE_STDLIB's directory
// (if set) contributes its own `.ct` files after those. Every module source
// file is loaded through readFile (mmap-backed).
func gatherProject(extraArgs []string, stdlibDir string) ([]loadedFile, []vm.ModuleSource, func(), error) {
	var paths []string
	paths = append(paths, extraArgs...)

	stdlib, err := stdlibModules(stdlibDir)
	if err != nil {
		return nil, nil, nil, err
	}
	paths = append(paths, stdlib...)

	var loaded []loadedFile
	closeAll := func() {
		for _, lf := range loaded {
			if lf.closer != nil {
				lf.closer()
			}
		}
	}

	modules := make([]vm.ModuleSource, 0, len(paths))
	for _, p := range paths {
		src, closer, err := readFile(p)
		if err != nil {
			closeAll()
			return nil, nil, nil, err
		}
		loaded = append(loaded, loadedFile{path: p, src: src, closer: closer})
		modules = append(modules, vm.ModuleSource{Name: moduleName(p), Filename: p, Src: src})
	}
	return loaded, modules, closeAll, nil
}
