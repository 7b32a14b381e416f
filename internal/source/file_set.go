package source

import (
	"fmt"
	"os"
	"sync"

	"fortio.org/safecast"
	"github.com/cespare/xxhash/v2"
)

// FileSet holds every file loaded during a run. It is safe for concurrent
// use: checker workers load files in parallel.
type FileSet struct {
	mu      sync.RWMutex
	files   []*File
	index   map[string]FileID // путь -> последняя версия
	base    string            // относительно неё строятся имена в отчётах
	charset string
}

func NewFileSet() *FileSet {
	return &FileSet{index: make(map[string]FileID)}
}

// NewFileSetWithBase returns a set whose Name is relative to base.
func NewFileSetWithBase(base string) *FileSet {
	fs := NewFileSet()
	fs.base = base
	return fs
}

// SetCharset sets the encoding Load decodes from. "" and "utf-8" mean no
// decoding.
func (fs *FileSet) SetCharset(name string) error {
	if _, err := lookupEncoding(name); err != nil {
		return err
	}
	fs.mu.Lock()
	fs.charset = name
	fs.mu.Unlock()
	return nil
}

// Name is the name of path used in reports: relative to the base directory,
// or path itself when there is no base or path lies outside it.
func (fs *FileSet) Name(path string) string {
	if fs.base == "" {
		return path
	}
	if rel, err := RelativePath(path, fs.base); err == nil {
		return rel
	}
	return path
}

// Add stores normalized content under path. Every call creates a new
// version; lookups by path return the latest one.
func (fs *FileSet) Add(path string, content []byte, flags FileFlags) FileID {
	file := &File{
		Path:    normalizePath(path),
		Content: content,
		LineIdx: buildLineIndex(content),
		Hash:    xxhash.Sum64(content),
		Flags:   flags,
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()
	id, err := safecast.Conv[uint32](len(fs.files))
	if err != nil {
		panic(fmt.Errorf("too many files: %w", err))
	}
	file.ID = FileID(id)
	fs.files = append(fs.files, file)
	fs.index[file.Path] = file.ID
	return file.ID
}

// Load reads path, decodes the configured charset, strips a BOM and turns
// CRLF into LF.
func (fs *FileSet) Load(path string) (FileID, error) {
	// #nosec G304 -- пути приходят из списка проверяемых файлов
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	fs.mu.RLock()
	charset := fs.charset
	fs.mu.RUnlock()

	content, decoded, err := decode(raw, charset)
	if err != nil {
		return 0, fmt.Errorf("decode %s as %s: %w", path, charset, err)
	}
	content, hadBOM := removeBOM(content)
	content, hadCRLF := normalizeCRLF(content)

	var flags FileFlags
	if decoded {
		flags |= FileDecoded
	}
	if hadBOM {
		flags |= FileHadBOM
	}
	if hadCRLF {
		flags |= FileNormalizedCRLF
	}
	return fs.Add(path, content, flags), nil
}

// AddVirtual adds an in-memory file, e.g. from a test or stdin.
func (fs *FileSet) AddVirtual(name string, content []byte) FileID {
	content, _ = normalizeCRLF(content)
	return fs.Add(name, content, FileVirtual)
}

// Get returns the file with id, or nil.
func (fs *FileSet) Get(id FileID) *File {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	if int(id) >= len(fs.files) {
		return nil
	}
	return fs.files[id]
}

// Len returns the number of stored file versions.
func (fs *FileSet) Len() int {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return len(fs.files)
}

// GetByPath returns the latest version of path.
func (fs *FileSet) GetByPath(path string) (*File, bool) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	id, ok := fs.index[normalizePath(path)]
	if !ok {
		return nil, false
	}
	return fs.files[id], true
}

// Resolve converts a byte offset into a line and a column counted in
// characters. Offsets past the end resolve to the end of the file.
func (f *File) Resolve(off uint32) LineCol {
	return lineCol(f.Content, f.LineIdx, off)
}

// GetLine returns line n (1-based) without its newline, or "" when the file
// has no such line.
func (f *File) GetLine(n uint32) string {
	if n == 0 || int(n) > len(f.LineIdx)+1 {
		return ""
	}
	var start uint32
	if n > 1 {
		start = f.LineIdx[n-2] + 1
	}
	end := uint32(len(f.Content))
	if int(n) <= len(f.LineIdx) {
		end = f.LineIdx[n-1]
	}
	if start >= end {
		return ""
	}
	return string(f.Content[start:end])
}
