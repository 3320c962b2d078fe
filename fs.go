package unifs

import (
	"context"
	"iter"
	"time"
)

// FileInfo represents file/directory metadata.
// Times are always UTC.
type FileInfo struct {
	Name     string
	FullName string
	Size     int64
	Created  time.Time
	Modified time.Time
	Accessed time.Time
	IsDir    bool

	// Synthetic reports that the backend could not supply real metadata and
	// filled in placeholders ("now" for timestamps, 0 for size).
	Synthetic bool
}

// SyntheticInfo returns placeholder metadata for backends whose protocol does
// not expose sizes or timestamps.
func SyntheticInfo(name, fullName string, isDir bool) *FileInfo {
	now := time.Now().UTC()
	return &FileInfo{
		Name:      name,
		FullName:  fullName,
		Created:   now,
		Modified:  now,
		Accessed:  now,
		IsDir:     isDir,
		Synthetic: true,
	}
}

// ============================================================================
// Core Interfaces
// ============================================================================

// Entry is the behaviour shared by files and directories on every backend.
//
// Handles are cheap values constructed per call site. They hold a path, not an
// open connection: every method acquires and releases whatever it needs before
// returning. A handle is not safe for concurrent use while Rename is running.
type Entry interface {
	// FullName is the absolute, normalized path of the entry including its scheme.
	FullName() string

	// Name is the last path element.
	Name() string

	// Exists reports whether the entry is present on the backend.
	// Write-only or virtual backends may always report true.
	Exists(ctx context.Context) (bool, error)

	// Stat returns metadata. Backends that cannot retrieve metadata return
	// synthetic values with FileInfo.Synthetic set.
	Stat(ctx context.Context) (*FileInfo, error)

	// Delete removes the entry. Directories are emptied first.
	// Deleting something that does not exist is a no-op.
	Delete(ctx context.Context) error

	// Rename renames the entry inside its current parent and updates the
	// handle in place. It is a no-op when the entry does not exist.
	Rename(ctx context.Context, newName string) error

	// MoveTo moves the entry into target, which may belong to any backend.
	// It is a no-op when the entry does not exist. Not transactional.
	MoveTo(ctx context.Context, target Directory) error

	// CopyTo copies the entry into target, which may belong to any backend.
	// Not transactional: on failure the destination may be partially populated.
	CopyTo(ctx context.Context, target Directory, opt CopyOption) error
}

// Directory is a directory handle.
type Directory interface {
	Entry

	// Parent returns the parent directory, or nil for a root.
	Parent() Directory

	// Root returns the root directory of the backend location.
	Root() Directory

	// Create creates the directory and any missing parents.
	// Calling it on an existing directory is not an error.
	Create(ctx context.Context) error

	// EnumerateFiles lazily yields the files whose name matches pattern.
	// An empty pattern matches everything.
	EnumerateFiles(ctx context.Context, pattern string, opt SearchOption) iter.Seq2[File, error]

	// EnumerateDirectories lazily yields the subdirectories whose name matches pattern.
	EnumerateDirectories(ctx context.Context, pattern string, opt SearchOption) iter.Seq2[Directory, error]

	// ChildFile returns a handle for a file directly below this directory.
	// The handle is built by this directory's backend; nothing is created.
	ChildFile(name string) File

	// ChildDirectory returns a handle for a directory directly below this one.
	ChildDirectory(name string) Directory
}

// File is a file handle.
type File interface {
	Entry

	// Extension returns the file name extension including the dot.
	Extension() string

	// Length returns the content length in bytes.
	Length(ctx context.Context) (int64, error)

	// Directory returns the containing directory.
	Directory() Directory

	// Read returns the whole content decoded with the configured encoding.
	Read(ctx context.Context, options ...Option) (string, error)

	// ReadBinary returns the whole content.
	ReadBinary(ctx context.Context) ([]byte, error)

	// Write encodes content with the configured encoding and writes it
	// according to the configured WriteMode.
	Write(ctx context.Context, content string, options ...Option) error

	// WriteBinary writes data according to the configured WriteMode.
	WriteBinary(ctx context.Context, data []byte, options ...Option) error
}

// ============================================================================
// Optional Capability Interfaces
// ============================================================================

// CanWatch indicates the directory supports change notifications.
//
//	if w, ok := dir.(unifs.CanWatch); ok {
//	    token, err := w.Watch(ctx, "*.json")
//	}
type CanWatch interface {
	Watch(ctx context.Context, pattern string) (ChangeToken, error)
}

// ChangeToken represents a change notification token.
// Consumers either poll HasChanged or register a callback.
type ChangeToken interface {
	// HasChanged returns true once a change has occurred. Tokens are single-use.
	HasChanged() bool

	// ActiveChangeCallbacks indicates if the token proactively raises callbacks.
	ActiveChangeCallbacks() bool

	// RegisterChangeCallback registers a callback invoked when a change occurs.
	// Driver tokens release their watcher once the last callback is
	// unregistered.
	RegisterChangeCallback(callback func()) (unregister func())
}
