package memory

import (
	"context"
	"iter"
	"net/url"
	"path"
	"strings"

	"github.com/rs/zerolog"

	"github.com/gobeaver/unifs"
)

// entry is the part shared by directory and file handles.
type entry struct {
	url    *url.URL
	store  *Store
	logger zerolog.Logger
}

// Directory is a directory in a memory volume.
type Directory struct {
	entry
}

// File is a file in a memory volume.
type File struct {
	entry
}

var (
	_ unifs.Directory = (*Directory)(nil)
	_ unifs.File      = (*File)(nil)
	_ unifs.CanWatch  = (*Directory)(nil)
)

func (e *entry) key() string {
	if e.url.Path == "/" {
		return e.url.Host + "/"
	}
	return e.url.Host + e.url.Path
}

func (e *entry) FullName() string {
	return e.url.String()
}

func (e *entry) Name() string {
	if e.url.Path == "/" {
		return e.url.Host
	}
	return path.Base(e.url.Path)
}

func (e *entry) parentPath() string {
	return path.Dir(e.url.Path)
}

func (e *entry) with(p string) entry {
	u := *e.url
	u.Path = cleanPath(p)
	return entry{url: &u, store: e.store, logger: e.logger}
}

func (e *entry) sameStore(other *entry) bool {
	return e.store == other.store
}

func validName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, `/\`)
}

// ============================================================================
// Directory
// ============================================================================

func (d *Directory) Parent() unifs.Directory {
	if d.url.Path == "/" {
		return nil
	}
	return &Directory{d.with(d.parentPath())}
}

func (d *Directory) Root() unifs.Directory {
	return &Directory{d.with("/")}
}

func (d *Directory) Exists(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, ok := d.store.dir(d.key())
	return ok, nil
}

// Stat reports the total size of all files below the directory.
func (d *Directory) Stat(ctx context.Context) (*unifs.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	md, ok := d.store.dir(d.key())
	if !ok {
		return nil, unifs.NewPathError("stat", d.FullName(), unifs.ErrNotExist)
	}
	if md == nil {
		info := unifs.SyntheticInfo(d.Name(), d.FullName(), true)
		info.Size = d.store.treeSize(d.key())
		return info, nil
	}
	return &unifs.FileInfo{
		Name:     d.Name(),
		FullName: d.FullName(),
		Size:     d.store.treeSize(d.key()),
		Created:  md.created,
		Modified: md.modTime,
		Accessed: md.modTime,
		IsDir:    true,
	}, nil
}

func (d *Directory) Create(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := d.store.mkdirAll(d.key()); err != nil {
		return unifs.NewPathError("create", d.FullName(), err)
	}
	return nil
}

func (d *Directory) Delete(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := d.store.dir(d.key()); ok {
		d.store.remove(d.key())
		d.logger.Debug().Str("path", d.FullName()).Msg("directory deleted")
	}
	return nil
}

func (d *Directory) Rename(ctx context.Context, newName string) error {
	if !validName(newName) {
		return unifs.NewPathError("rename", d.FullName(), unifs.ErrInvalidName)
	}
	exists, err := d.Exists(ctx)
	if err != nil || !exists || d.url.Path == "/" {
		return err
	}
	target := d.with(path.Join(d.parentPath(), newName))
	if target.key() == d.key() {
		return nil
	}
	if _, ok := d.store.dir(target.key()); ok {
		return unifs.NewPathError("rename", d.FullName(), unifs.ErrExist)
	}
	if err := d.store.rename(d.key(), target.key()); err != nil {
		return unifs.NewPathError("rename", d.FullName(), err)
	}
	d.entry = target
	return nil
}

// MoveTo moves the subtree inside the store when target lives in the same
// store and falls back to copy and delete otherwise.
func (d *Directory) MoveTo(ctx context.Context, target unifs.Directory) error {
	other, ok := target.(*Directory)
	if !ok || !d.sameStore(&other.entry) {
		return unifs.MoveDirectory(ctx, d, target)
	}

	exists, err := d.Exists(ctx)
	if err != nil || !exists {
		return err
	}
	dst := other.with(path.Join(other.url.Path, d.Name()))
	if dst.key() == d.key() {
		return nil
	}
	if strings.HasPrefix(dst.key(), strings.TrimSuffix(d.key(), "/")+"/") {
		return unifs.NewPathError("move", d.FullName(), unifs.ErrInvalidPath)
	}
	if err := d.store.mkdirAll(other.key()); err != nil {
		return unifs.NewPathError("move", d.FullName(), err)
	}
	if d.url.Path == "/" {
		return unifs.MoveDirectory(ctx, d, target)
	}
	if err := d.store.rename(d.key(), dst.key()); err != nil {
		return unifs.NewPathError("move", d.FullName(), err)
	}
	return nil
}

func (d *Directory) CopyTo(ctx context.Context, target unifs.Directory, opt unifs.CopyOption) error {
	return unifs.CopyDirectory(ctx, d, target, opt)
}

func (d *Directory) ChildFile(name string) unifs.File {
	return &File{d.with(path.Join(d.url.Path, name))}
}

func (d *Directory) ChildDirectory(name string) unifs.Directory {
	return &Directory{d.with(path.Join(d.url.Path, name))}
}

func (d *Directory) EnumerateFiles(ctx context.Context, pattern string, opt unifs.SearchOption) iter.Seq2[unifs.File, error] {
	return func(yield func(unifs.File, error) bool) {
		p, err := unifs.CompilePattern(pattern)
		if err != nil {
			yield(nil, err)
			return
		}
		d.walk(ctx, opt, func(dir string, name string, isDir bool) bool {
			if isDir || !p.Match(name) {
				return true
			}
			return yield(&File{d.with(path.Join(dir, name))}, nil)
		}, func(err error) {
			yield(nil, err)
		})
	}
}

func (d *Directory) EnumerateDirectories(ctx context.Context, pattern string, opt unifs.SearchOption) iter.Seq2[unifs.Directory, error] {
	return func(yield func(unifs.Directory, error) bool) {
		p, err := unifs.CompilePattern(pattern)
		if err != nil {
			yield(nil, err)
			return
		}
		d.walk(ctx, opt, func(dir string, name string, isDir bool) bool {
			if !isDir || !p.Match(name) {
				return true
			}
			return yield(&Directory{d.with(path.Join(dir, name))}, nil)
		}, func(err error) {
			yield(nil, err)
		})
	}
}

// walk lists one directory at a time, depth first, files before directories.
func (d *Directory) walk(ctx context.Context, opt unifs.SearchOption, fn func(dir, name string, isDir bool) bool, fail func(error)) {
	pending := []string{d.url.Path}
	for len(pending) > 0 {
		if err := ctx.Err(); err != nil {
			fail(err)
			return
		}
		dir := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		sub := d.with(dir)
		files, dirs := d.store.children(sub.key())
		for _, name := range files {
			if !fn(dir, name, false) {
				return
			}
		}
		for _, name := range dirs {
			if !fn(dir, name, true) {
				return
			}
		}
		if opt == unifs.SearchAllDirectories {
			for i := len(dirs) - 1; i >= 0; i-- {
				pending = append(pending, path.Join(dir, dirs[i]))
			}
		}
	}
}

// Watch returns a token signalled by the next write, delete or rename below
// the directory whose file name matches pattern. The watch is dropped when
// ctx ends or the token is stopped.
func (d *Directory) Watch(ctx context.Context, pattern string) (unifs.ChangeToken, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := unifs.CompilePattern(pattern)
	if err != nil {
		return nil, err
	}
	return d.store.watch(ctx, d.key(), p), nil
}

// ============================================================================
// File
// ============================================================================

func (f *File) Extension() string {
	return path.Ext(f.url.Path)
}

func (f *File) Directory() unifs.Directory {
	return &Directory{f.with(f.parentPath())}
}

func (f *File) Exists(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return f.store.file(f.key()) != nil, nil
}

func (f *File) Stat(ctx context.Context) (*unifs.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mf := f.store.file(f.key())
	if mf == nil {
		if _, ok := f.store.dir(f.key()); ok {
			return nil, unifs.NewPathError("stat", f.FullName(), unifs.ErrIsDir)
		}
		return nil, unifs.NewPathError("stat", f.FullName(), unifs.ErrNotExist)
	}
	return &unifs.FileInfo{
		Name:     f.Name(),
		FullName: f.FullName(),
		Size:     int64(len(mf.content)),
		Created:  mf.created,
		Modified: mf.modTime,
		Accessed: mf.accessed,
	}, nil
}

func (f *File) Length(ctx context.Context) (int64, error) {
	info, err := f.Stat(ctx)
	if err != nil {
		return 0, err
	}
	return info.Size, nil
}

func (f *File) Delete(ctx context.Context) error {
	exists, err := f.Exists(ctx)
	if err != nil || !exists {
		return err
	}
	f.store.remove(f.key())
	return nil
}

func (f *File) Rename(ctx context.Context, newName string) error {
	if !validName(newName) {
		return unifs.NewPathError("rename", f.FullName(), unifs.ErrInvalidName)
	}
	exists, err := f.Exists(ctx)
	if err != nil || !exists {
		return err
	}
	target := f.with(path.Join(f.parentPath(), newName))
	if err := f.store.rename(f.key(), target.key()); err != nil {
		return unifs.NewPathError("rename", f.FullName(), err)
	}
	f.entry = target
	return nil
}

// MoveTo overwrites an existing file of the same name in target.
func (f *File) MoveTo(ctx context.Context, target unifs.Directory) error {
	other, ok := target.(*Directory)
	if !ok || !f.sameStore(&other.entry) {
		return unifs.MoveFile(ctx, f, target)
	}

	exists, err := f.Exists(ctx)
	if err != nil || !exists {
		return err
	}
	dst := other.with(path.Join(other.url.Path, f.Name()))
	if err := f.store.mkdirAll(other.key()); err != nil {
		return unifs.NewPathError("move", f.FullName(), err)
	}
	if err := f.store.rename(f.key(), dst.key()); err != nil {
		return unifs.NewPathError("move", f.FullName(), err)
	}
	return nil
}

func (f *File) CopyTo(ctx context.Context, target unifs.Directory, opt unifs.CopyOption) error {
	return unifs.CopyFile(ctx, f, target, opt)
}

func (f *File) ReadBinary(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := f.store.read(f.key())
	if err != nil {
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

func (f *File) Write(ctx context.Context, content string, options ...unifs.Option) error {
	data, err := unifs.ProcessOptions(options...).Encode(content)
	if err != nil {
		return unifs.NewPathError("write", f.FullName(), err)
	}
	return f.WriteBinary(ctx, data, options...)
}

func (f *File) WriteBinary(ctx context.Context, data []byte, options ...unifs.Option) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	mode := unifs.ProcessOptions(options...).Mode
	if err := f.store.write(f.key(), data, mode); err != nil {
		return unifs.NewPathError("write", f.FullName(), err)
	}
	return nil
}
