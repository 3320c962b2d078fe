package local

import (
	"context"
	"io"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"emperror.dev/errors"
	"github.com/rs/zerolog"

	"github.com/gobeaver/unifs"
)

// Directory is a directory on the local disk.
type Directory struct {
	path   string
	logger zerolog.Logger
}

// File is a file on the local disk.
type File struct {
	path   string
	logger zerolog.Logger
}

var (
	_ unifs.Directory = (*Directory)(nil)
	_ unifs.File      = (*File)(nil)
	_ unifs.CanWatch  = (*Directory)(nil)
)

// NewDirectory returns a handle for the directory at path. Nothing is created.
func NewDirectory(path string, logger zerolog.Logger) *Directory {
	return &Directory{path: filepath.Clean(path), logger: logger}
}

// NewFile returns a handle for the file at path. Nothing is created.
func NewFile(path string, logger zerolog.Logger) *File {
	return &File{path: filepath.Clean(path), logger: logger}
}

// translateError maps os errors onto the unifs sentinels.
func translateError(op, path string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrNotExist):
		return unifs.NewPathError(op, path, unifs.ErrNotExist)
	case errors.Is(err, fs.ErrExist):
		return unifs.NewPathError(op, path, unifs.ErrExist)
	case errors.Is(err, fs.ErrPermission):
		return unifs.NewPathError(op, path, unifs.ErrPermission)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return unifs.NewPathError(op, path, err)
	}
}

func validName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, `/\`)
}

func fileInfo(path string, info os.FileInfo) *unifs.FileInfo {
	created, accessed := platformTimes(info)
	modified := info.ModTime().UTC()
	if created.IsZero() {
		created = modified
	}
	if accessed.IsZero() {
		accessed = modified
	}
	return &unifs.FileInfo{
		Name:     filepath.Base(path),
		FullName: path,
		Size:     info.Size(),
		Created:  created.UTC(),
		Modified: modified,
		Accessed: accessed.UTC(),
		IsDir:    info.IsDir(),
	}
}

// ============================================================================
// Directory
// ============================================================================

func (d *Directory) FullName() string {
	return d.path
}

func (d *Directory) Name() string {
	return filepath.Base(d.path)
}

func (d *Directory) Parent() unifs.Directory {
	parent := filepath.Dir(d.path)
	if parent == d.path {
		return nil
	}
	return &Directory{path: parent, logger: d.logger}
}

func (d *Directory) Root() unifs.Directory {
	return &Directory{path: filepath.VolumeName(d.path) + string(filepath.Separator), logger: d.logger}
}

func (d *Directory) Exists(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	info, err := os.Stat(d.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, translateError("exists", d.path, err)
	}
	return info.IsDir(), nil
}

// Stat returns the directory metadata. Size is the total length of all files
// below the directory.
func (d *Directory) Stat(ctx context.Context) (*unifs.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info, err := os.Stat(d.path)
	if err != nil {
		return nil, translateError("stat", d.path, err)
	}
	if !info.IsDir() {
		return nil, unifs.NewPathError("stat", d.path, unifs.ErrNotDir)
	}

	result := fileInfo(d.path, info)
	result.Size = 0
	err = filepath.WalkDir(d.path, func(_ string, e fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.Type().IsRegular() {
			fi, err := e.Info()
			if err != nil {
				return err
			}
			result.Size += fi.Size()
		}
		return nil
	})
	if err != nil {
		return nil, translateError("stat", d.path, err)
	}
	return result, nil
}

// Create creates the directory and any missing parents.
func (d *Directory) Create(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return translateError("create", d.path, os.MkdirAll(d.path, 0755))
}

// Delete removes the directory and everything below it. A missing path, or a
// path that is not a directory, is left alone.
func (d *Directory) Delete(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fi, err := os.Stat(d.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return translateError("delete", d.path, err)
	}
	if !fi.IsDir() {
		return nil
	}
	return translateError("delete", d.path, os.RemoveAll(d.path))
}

func (d *Directory) Rename(ctx context.Context, newName string) error {
	if !validName(newName) {
		return unifs.NewPathError("rename", d.path, unifs.ErrInvalidName)
	}
	exists, err := d.Exists(ctx)
	if err != nil || !exists {
		return err
	}

	target := filepath.Join(filepath.Dir(d.path), newName)
	if err := os.Rename(d.path, target); err != nil {
		return translateError("rename", d.path, err)
	}
	d.path = target
	return nil
}

// MoveTo renames the directory into target when both are local and on the
// same volume, otherwise it copies and deletes.
func (d *Directory) MoveTo(ctx context.Context, target unifs.Directory) error {
	other, ok := target.(*Directory)
	if !ok {
		return unifs.MoveDirectory(ctx, d, target)
	}

	exists, err := d.Exists(ctx)
	if err != nil || !exists {
		return err
	}
	dst := filepath.Join(other.path, d.Name())
	if unifs.SamePath(dst, d.path) {
		return nil
	}
	if unifs.IsWithin(dst, d.path) {
		return unifs.NewPathError("move", d.path, unifs.ErrInvalidPath)
	}

	if err := os.MkdirAll(other.path, 0755); err != nil {
		return translateError("move", other.path, err)
	}
	if err := os.Rename(d.path, dst); err != nil {
		d.logger.Debug().Err(err).Str("src", d.path).Str("dst", dst).Msg("rename failed, copying instead")
		return unifs.MoveDirectory(ctx, d, target)
	}
	return nil
}

func (d *Directory) CopyTo(ctx context.Context, target unifs.Directory, opt unifs.CopyOption) error {
	return unifs.CopyDirectory(ctx, d, target, opt)
}

func (d *Directory) ChildFile(name string) unifs.File {
	return &File{path: filepath.Join(d.path, name), logger: d.logger}
}

func (d *Directory) ChildDirectory(name string) unifs.Directory {
	return &Directory{path: filepath.Join(d.path, name), logger: d.logger}
}

func (d *Directory) EnumerateFiles(ctx context.Context, pattern string, opt unifs.SearchOption) iter.Seq2[unifs.File, error] {
	return func(yield func(unifs.File, error) bool) {
		p, err := unifs.CompilePattern(pattern)
		if err != nil {
			yield(nil, err)
			return
		}
		err = d.walk(ctx, opt, func(path string, e fs.DirEntry) bool {
			if e.IsDir() || !p.Match(e.Name()) {
				return true
			}
			return yield(&File{path: path, logger: d.logger}, nil)
		})
		if err != nil {
			yield(nil, err)
		}
	}
}

func (d *Directory) EnumerateDirectories(ctx context.Context, pattern string, opt unifs.SearchOption) iter.Seq2[unifs.Directory, error] {
	return func(yield func(unifs.Directory, error) bool) {
		p, err := unifs.CompilePattern(pattern)
		if err != nil {
			yield(nil, err)
			return
		}
		err = d.walk(ctx, opt, func(path string, e fs.DirEntry) bool {
			if !e.IsDir() || !p.Match(e.Name()) {
				return true
			}
			return yield(&Directory{path: path, logger: d.logger}, nil)
		})
		if err != nil {
			yield(nil, err)
		}
	}
}

// walk calls fn for every entry below d until fn returns false. It returns
// nil when fn stops the walk.
func (d *Directory) walk(ctx context.Context, opt unifs.SearchOption, fn func(path string, e fs.DirEntry) bool) error {
	if opt == unifs.SearchAllDirectories {
		err := filepath.WalkDir(d.path, func(path string, e fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if path == d.path {
				return nil
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if !fn(path, e) {
				return filepath.SkipAll
			}
			return nil
		})
		return translateError("enumerate", d.path, err)
	}

	entries, err := os.ReadDir(d.path)
	if err != nil {
		return translateError("enumerate", d.path, err)
	}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !fn(filepath.Join(d.path, e.Name()), e) {
			return nil
		}
	}
	return nil
}

// ============================================================================
// File
// ============================================================================

func (f *File) FullName() string {
	return f.path
}

func (f *File) Name() string {
	return filepath.Base(f.path)
}

func (f *File) Extension() string {
	return filepath.Ext(f.path)
}

func (f *File) Directory() unifs.Directory {
	return &Directory{path: filepath.Dir(f.path), logger: f.logger}
}

func (f *File) Exists(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	info, err := os.Stat(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, translateError("exists", f.path, err)
	}
	return !info.IsDir(), nil
}

func (f *File) Stat(ctx context.Context) (*unifs.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info, err := os.Stat(f.path)
	if err != nil {
		return nil, translateError("stat", f.path, err)
	}
	if info.IsDir() {
		return nil, unifs.NewPathError("stat", f.path, unifs.ErrIsDir)
	}
	return fileInfo(f.path, info), nil
}

func (f *File) Length(ctx context.Context) (int64, error) {
	info, err := f.Stat(ctx)
	if err != nil {
		return 0, err
	}
	return info.Size, nil
}

func (f *File) Delete(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fi, err := os.Stat(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return translateError("delete", f.path, err)
	}
	if fi.IsDir() {
		return nil
	}
	err = os.Remove(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return translateError("delete", f.path, err)
}

func (f *File) Rename(ctx context.Context, newName string) error {
	if !validName(newName) {
		return unifs.NewPathError("rename", f.path, unifs.ErrInvalidName)
	}
	exists, err := f.Exists(ctx)
	if err != nil || !exists {
		return err
	}

	target := filepath.Join(filepath.Dir(f.path), newName)
	if err := os.Rename(f.path, target); err != nil {
		return translateError("rename", f.path, err)
	}
	f.path = target
	return nil
}

func (f *File) MoveTo(ctx context.Context, target unifs.Directory) error {
	other, ok := target.(*Directory)
	if !ok {
		return unifs.MoveFile(ctx, f, target)
	}

	exists, err := f.Exists(ctx)
	if err != nil || !exists {
		return err
	}
	dst := filepath.Join(other.path, f.Name())
	if unifs.SamePath(dst, f.path) {
		return nil
	}

	if err := os.MkdirAll(other.path, 0755); err != nil {
		return translateError("move", other.path, err)
	}
	if err := os.Rename(f.path, dst); err != nil {
		f.logger.Debug().Err(err).Str("src", f.path).Str("dst", dst).Msg("rename failed, copying instead")
		return unifs.MoveFile(ctx, f, target)
	}
	return nil
}

// CopyTo streams the file when target is local and goes through the bridge
// otherwise.
func (f *File) CopyTo(ctx context.Context, target unifs.Directory, opt unifs.CopyOption) error {
	other, ok := target.(*Directory)
	if !ok {
		return unifs.CopyFile(ctx, f, target, opt)
	}

	dst := &File{path: filepath.Join(other.path, f.Name()), logger: f.logger}
	if unifs.SamePath(dst.path, f.path) {
		return nil
	}
	write, err := unifs.ShouldCopy(ctx, f, dst, opt)
	if err != nil {
		return unifs.NewPathError("copy", f.path, err)
	}
	if !write {
		return nil
	}
	return copyLocal(f.path, dst.path)
}

func copyLocal(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return translateError("copy", src, err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return translateError("copy", dst, err)
	}
	out, err := os.Create(dst)
	if err != nil {
		return translateError("copy", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return translateError("copy", dst, err)
	}
	if err := out.Close(); err != nil {
		return translateError("copy", dst, err)
	}

	// Copy file permissions
	if info, err := in.Stat(); err == nil {
		_ = os.Chmod(dst, info.Mode())
	}
	return nil
}

func (f *File) ReadBinary(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, translateError("read", f.path, err)
	}
	return data, nil
}

func (f *File) Read(ctx context.Context, options ...unifs.Option) (string, error) {
	data, err := f.ReadBinary(ctx)
	if err != nil {
		return "", err
	}
	s, err := unifs.ProcessOptions(options...).Decode(data)
	if err != nil {
		return "", unifs.NewPathError("read", f.path, err)
	}
	return s, nil
}

func (f *File) Write(ctx context.Context, content string, options ...unifs.Option) error {
	data, err := unifs.ProcessOptions(options...).Encode(content)
	if err != nil {
		return unifs.NewPathError("write", f.path, err)
	}
	return f.WriteBinary(ctx, data, options...)
}

func (f *File) WriteBinary(ctx context.Context, data []byte, options ...unifs.Option) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	mode := unifs.ProcessOptions(options...).Mode
	flags := openFlags(mode)

	if flags&os.O_CREATE != 0 {
		if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
			return translateError("write", f.path, err)
		}
	}

	out, err := os.OpenFile(f.path, flags, 0644)
	if err != nil {
		return translateError("write", f.path, err)
	}
	if _, err := out.Write(data); err != nil {
		out.Close()
		return translateError("write", f.path, err)
	}
	return translateError("write", f.path, out.Close())
}

func openFlags(mode unifs.WriteMode) int {
	switch mode {
	case unifs.ModeCreateNew:
		return os.O_WRONLY | os.O_CREATE | os.O_EXCL
	case unifs.ModeOpen:
		return os.O_WRONLY
	case unifs.ModeOpenOrCreate:
		return os.O_WRONLY | os.O_CREATE
	case unifs.ModeTruncate:
		return os.O_WRONLY | os.O_TRUNC
	case unifs.ModeAppend:
		return os.O_WRONLY | os.O_CREATE | os.O_APPEND
	default:
		return os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
}
