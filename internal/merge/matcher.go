package merge

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// candidateFilter decides which walk entries reach the hash pool.
type candidateFilter struct {
	extension   string
	maxPathLen  int
	excludeDirs []string

	outputBase string
	outputAbs  string
	outputInfo os.FileInfo
}

func newCandidateFilter(opts Options, output *os.File) candidateFilter {
	f := candidateFilter{
		extension:  opts.Extension,
		maxPathLen: opts.MaxPathLen,
		outputBase: filepath.Base(opts.OutputPath),
	}
	if abs, err := filepath.Abs(opts.OutputPath); err == nil {
		f.outputAbs = abs
	}
	if output != nil {
		if info, err := output.Stat(); err == nil {
			f.outputInfo = info
		}
	}
	for _, dir := range opts.ExcludeDirs {
		if abs, err := resolveDir(dir); err == nil {
			f.excludeDirs = append(f.excludeDirs, abs)
		}
	}
	return f
}

// resolveDir returns the absolute form of dir with symlinks evaluated, so it
// compares equal to paths walked below a resolved root. A directory that
// does not exist keeps its lexical absolute form.
func resolveDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	return abs, nil
}

// fileExt returns the extension of name the way a path library reports it:
// the suffix from the last dot, except that a leading dot alone marks a
// hidden file rather than an extension.
func fileExt(name string) string {
	ext := filepath.Ext(name)
	if ext == name {
		return ""
	}
	return ext
}

// matchesExtension is a case-sensitive comparison against the target.
func (f candidateFilter) matchesExtension(path string) bool {
	return fileExt(filepath.Base(path)) == f.extension
}

// isOutput guards against merging output into output. Any file named like
// the output is skipped, wherever it sits, so the result of an earlier run
// is never re-ingested. A link to the output under another name is caught
// by comparing file identity.
func (f candidateFilter) isOutput(path string) bool {
	if filepath.Base(path) == f.outputBase {
		return true
	}
	if f.outputInfo != nil {
		if info, err := os.Stat(path); err == nil {
			return os.SameFile(info, f.outputInfo)
		}
	}
	abs, err := filepath.Abs(path)
	return err == nil && abs == f.outputAbs
}

// shouldSkipDirectory checks if the directory is excluded from the walk
func (f candidateFilter) shouldSkipDirectory(dir string) bool {
	if len(f.excludeDirs) == 0 {
		return false
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	for _, excluded := range f.excludeDirs {
		if abs == excluded || strings.HasPrefix(abs, excluded+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// isReadableKind rejects entries that are not regular files or symlinks to
// regular files; opening a FIFO would block a hash worker forever.
func isReadableKind(path string, d fs.DirEntry) bool {
	mode := d.Type()
	if mode.IsRegular() {
		return true
	}
	if mode&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
