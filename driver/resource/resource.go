package resource

import (
	"context"
	"io/fs"
	"iter"
	"path"

	"emperror.dev/errors"
	"github.com/rs/zerolog"

	"github.com/gobeaver/unifs"
)

// node is the part shared by directory and file handles. fsys is nil when
// the assembly is not registered; such handles never exist.
type node struct {
	assembly string
	fsys     fs.FS
	name     string
	logger   zerolog.Logger
}

// Directory is a folder inside an assembly.
type Directory struct {
	node
}

// File is a resource inside an assembly.
type File struct {
	node
}

var (
	_ unifs.Directory = (*Directory)(nil)
	_ unifs.File      = (*File)(nil)
	_ unifs.CanWatch  = (*Directory)(nil)
)

func (n *node) FullName() string {
	return fullName(n.assembly, n.name)
}

func (n *node) Name() string {
	if n.name == "." {
		return n.assembly
	}
	return path.Base(n.name)
}

func (n *node) stat(ctx context.Context) (fs.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if n.fsys == nil {
		return nil, unifs.NewPathError("stat", n.FullName(), unifs.ErrNotExist)
	}
	info, err := fs.Stat(n.fsys, n.name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, unifs.NewPathError("stat", n.FullName(), unifs.ErrNotExist)
		}
		return nil, unifs.NewPathError("stat", n.FullName(), err)
	}
	return info, nil
}

func (n *node) info(fi fs.FileInfo) *unifs.FileInfo {
	modified := fi.ModTime()
	if modified.IsZero() {
		result := unifs.SyntheticInfo(n.Name(), n.FullName(), fi.IsDir())
		result.Size = fi.Size()
		return result
	}
	modified = modified.UTC()
	return &unifs.FileInfo{
		Name:     n.Name(),
		FullName: n.FullName(),
		Size:     fi.Size(),
		Created:  modified,
		Modified: modified,
		Accessed: modified,
		IsDir:    fi.IsDir(),
	}
}

// Delete does nothing; resources are immutable.
func (n *node) Delete(context.Context) error {
	n.readOnly("delete")
	return nil
}

// Rename does nothing; resources are immutable.
func (n *node) Rename(context.Context, string) error {
	n.readOnly("rename")
	return nil
}

// MoveTo does nothing; resources are immutable.
func (n *node) MoveTo(context.Context, unifs.Directory) error {
	n.readOnly("move")
	return nil
}

func (n *node) readOnly(op string) {
	n.logger.Debug().Str("op", op).Str("path", n.FullName()).Msg("ignored on read-only resource")
}

func (n *node) child(name string) node {
	return node{assembly: n.assembly, fsys: n.fsys, name: path.Join(n.name, name), logger: n.logger}
}

// ============================================================================
// Directory
// ============================================================================

func (d *Directory) Parent() unifs.Directory {
	if d.name == "." {
		return nil
	}
	return &Directory{node{assembly: d.assembly, fsys: d.fsys, name: path.Dir(d.name), logger: d.logger}}
}

func (d *Directory) Root() unifs.Directory {
	return &Directory{node{assembly: d.assembly, fsys: d.fsys, name: ".", logger: d.logger}}
}

func (d *Directory) Exists(ctx context.Context) (bool, error) {
	fi, err := d.stat(ctx)
	if err != nil {
		if unifs.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return fi.IsDir(), nil
}

// Stat returns the folder metadata. Size is the total of all resources
// below it.
func (d *Directory) Stat(ctx context.Context) (*unifs.FileInfo, error) {
	fi, err := d.stat(ctx)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return nil, unifs.NewPathError("stat", d.FullName(), unifs.ErrNotDir)
	}

	result := d.info(fi)
	result.Size = 0
	err = fs.WalkDir(d.fsys, d.name, func(_ string, e fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !e.IsDir() {
			info, err := e.Info()
			if err != nil {
				return err
			}
			result.Size += info.Size()
		}
		return nil
	})
	if err != nil {
		return nil, unifs.NewPathError("stat", d.FullName(), err)
	}
	return result, nil
}

// Create does nothing; resources are immutable.
func (d *Directory) Create(context.Context) error {
	d.readOnly("create")
	return nil
}

func (d *Directory) CopyTo(ctx context.Context, target unifs.Directory, opt unifs.CopyOption) error {
	return unifs.CopyDirectory(ctx, d, target, opt)
}

func (d *Directory) ChildFile(name string) unifs.File {
	return &File{d.child(name)}
}

func (d *Directory) ChildDirectory(name string) unifs.Directory {
	return &Directory{d.child(name)}
}

func (d *Directory) EnumerateFiles(ctx context.Context, pattern string, opt unifs.SearchOption) iter.Seq2[unifs.File, error] {
	return func(yield func(unifs.File, error) bool) {
		p, err := unifs.CompilePattern(pattern)
		if err != nil {
			yield(nil, err)
			return
		}
		err = d.walk(ctx, opt, func(name string, e fs.DirEntry) bool {
			if e.IsDir() || !p.Match(e.Name()) {
				return true
			}
			return yield(&File{node{assembly: d.assembly, fsys: d.fsys, name: name, logger: d.logger}}, nil)
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
		err = d.walk(ctx, opt, func(name string, e fs.DirEntry) bool {
			if !e.IsDir() || !p.Match(e.Name()) {
				return true
			}
			return yield(&Directory{node{assembly: d.assembly, fsys: d.fsys, name: name, logger: d.logger}}, nil)
		})
		if err != nil {
			yield(nil, err)
		}
	}
}

func (d *Directory) walk(ctx context.Context, opt unifs.SearchOption, fn func(name string, e fs.DirEntry) bool) error {
	if d.fsys == nil {
		return unifs.NewPathError("enumerate", d.FullName(), unifs.ErrNotExist)
	}

	if opt == unifs.SearchAllDirectories {
		err := fs.WalkDir(d.fsys, d.name, func(name string, e fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if name == d.name {
				return nil
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if !fn(name, e) {
				return fs.SkipAll
			}
			return nil
		})
		return d.enumerateError(err)
	}

	entries, err := fs.ReadDir(d.fsys, d.name)
	if err != nil {
		return d.enumerateError(err)
	}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !fn(path.Join(d.name, e.Name()), e) {
			return nil
		}
	}
	return nil
}

func (d *Directory) enumerateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrNotExist):
		return unifs.NewPathError("enumerate", d.FullName(), unifs.ErrNotExist)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return unifs.NewPathError("enumerate", d.FullName(), err)
	}
}

// Watch returns a token that never fires.
func (d *Directory) Watch(context.Context, string) (unifs.ChangeToken, error) {
	return unifs.NeverChangeToken{}, nil
}

// ============================================================================
// File
// ============================================================================

func (f *File) Extension() string {
	return path.Ext(f.name)
}

func (f *File) Directory() unifs.Directory {
	return &Directory{node{assembly: f.assembly, fsys: f.fsys, name: path.Dir(f.name), logger: f.logger}}
}

func (f *File) Exists(ctx context.Context) (bool, error) {
	fi, err := f.stat(ctx)
	if err != nil {
		if unifs.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return !fi.IsDir(), nil
}

func (f *File) Stat(ctx context.Context) (*unifs.FileInfo, error) {
	fi, err := f.stat(ctx)
	if err != nil {
		return nil, err
	}
	if fi.IsDir() {
		return nil, unifs.NewPathError("stat", f.FullName(), unifs.ErrIsDir)
	}
	return f.info(fi), nil
}

func (f *File) Length(ctx context.Context) (int64, error) {
	info, err := f.Stat(ctx)
	if err != nil {
		return 0, err
	}
	return info.Size, nil
}

func (f *File) CopyTo(ctx context.Context, target unifs.Directory, opt unifs.CopyOption) error {
	return unifs.CopyFile(ctx, f, target, opt)
}

func (f *File) ReadBinary(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.fsys == nil {
		return nil, unifs.NewPathError("read", f.FullName(), unifs.ErrNotExist)
	}
	data, err := fs.ReadFile(f.fsys, f.name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, unifs.NewPathError("read", f.FullName(), unifs.ErrNotExist)
		}
		return nil, unifs.NewPathError("read", f.FullName(), err)
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
		return "", unifs.NewPathError("read", f.FullName(), err)
	}
	return s, nil
}

// Write does nothing; resources are immutable.
func (f *File) Write(context.Context, string, ...unifs.Option) error {
	f.readOnly("write")
	return nil
}

// WriteBinary does nothing; resources are immutable.
func (f *File) WriteBinary(context.Context, []byte, ...unifs.Option) error {
	f.readOnly("write")
	return nil
}
