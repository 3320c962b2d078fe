package ftp

import (
	"bytes"
	"context"
	"io"
	"iter"
	"net/url"
	"path"
	"strings"

	"github.com/jlaffaye/ftp"
	"github.com/rs/zerolog"

	"github.com/gobeaver/unifs"
)

// remote is the part shared by directory and file handles. Every method opens
// its own connection and closes it before returning.
type remote struct {
	url    *url.URL
	dial   Dialer
	creds  *unifs.Credentials
	logger zerolog.Logger
}

// Directory is a directory on an FTP server.
type Directory struct {
	remote
}

// File is a file on an FTP server.
type File struct {
	remote
}

var (
	_ unifs.Directory = (*Directory)(nil)
	_ unifs.File      = (*File)(nil)
	_ unifs.CanWatch  = (*Directory)(nil)
)

func (r *remote) FullName() string {
	return r.url.String()
}

func (r *remote) Name() string {
	if r.url.Path == "/" {
		return r.url.Host
	}
	return path.Base(r.url.Path)
}

func (r *remote) parentPath() string {
	return path.Dir(r.url.Path)
}

func (r *remote) with(p string) remote {
	u := *r.url
	u.Path = cleanPath(p)
	return remote{url: &u, dial: r.dial, creds: r.creds, logger: r.logger}
}

// session dials, runs fn and always quits.
func (r *remote) session(ctx context.Context, op string, fn func(Conn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c, err := r.dial(ctx, r.url, r.creds)
	if err != nil {
		return unifs.NewPathError(op, r.FullName(), err)
	}
	defer func() {
		if err := c.Quit(); err != nil {
			r.logger.Debug().Err(err).Str("host", r.url.Host).Msg("ftp quit failed")
		}
	}()

	if err := fn(c); err != nil {
		return unifs.NewPathError(op, r.FullName(), translateError(err))
	}
	return nil
}

// entry returns the listing entry for this path, or nil when it is missing.
func (r *remote) entry(ctx context.Context, op string) (*ftp.Entry, error) {
	var found *ftp.Entry
	err := r.session(ctx, op, func(c Conn) error {
		e, err := find(c, r.parentPath(), path.Base(r.url.Path))
		if err != nil {
			if unifs.IsNotExist(err) {
				return nil
			}
			return err
		}
		found = e
		return nil
	})
	return found, err
}

func (r *remote) info(e *ftp.Entry) *unifs.FileInfo {
	isDir := e.Type == ftp.EntryTypeFolder
	if e.Time.IsZero() {
		info := unifs.SyntheticInfo(r.Name(), r.FullName(), isDir)
		info.Size = int64(e.Size)
		return info
	}
	t := e.Time.UTC()
	return &unifs.FileInfo{
		Name:     r.Name(),
		FullName: r.FullName(),
		Size:     int64(e.Size),
		Created:  t,
		Modified: t,
		Accessed: t,
		IsDir:    isDir,
	}
}

func (r *remote) sameServer(other *remote) bool {
	return r.url.Scheme == other.url.Scheme && r.url.Host == other.url.Host
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
	if d.url.Path == "/" {
		return true, nil
	}
	e, err := d.entry(ctx, "exists")
	if err != nil {
		return false, err
	}
	return e != nil && e.Type == ftp.EntryTypeFolder, nil
}

func (d *Directory) Stat(ctx context.Context) (*unifs.FileInfo, error) {
	if d.url.Path == "/" {
		return unifs.SyntheticInfo(d.Name(), d.FullName(), true), nil
	}
	e, err := d.entry(ctx, "stat")
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, unifs.NewPathError("stat", d.FullName(), unifs.ErrNotExist)
	}
	if e.Type != ftp.EntryTypeFolder {
		return nil, unifs.NewPathError("stat", d.FullName(), unifs.ErrNotDir)
	}
	return d.info(e), nil
}

// Create issues MKD for every missing level.
func (d *Directory) Create(ctx context.Context) error {
	return d.session(ctx, "create", func(c Conn) error {
		current := "/"
		for _, part := range strings.Split(strings.Trim(d.url.Path, "/"), "/") {
			if part == "" {
				continue
			}
			next := path.Join(current, part)
			e, err := find(c, current, part)
			if err != nil {
				return err
			}
			switch {
			case e == nil:
				if err := c.MakeDir(next); err != nil {
					return err
				}
			case e.Type != ftp.EntryTypeFolder:
				return unifs.ErrNotDir
			}
			current = next
		}
		return nil
	})
}

// Delete empties the directory through the contract, then removes it.
func (d *Directory) Delete(ctx context.Context) error {
	exists, err := d.Exists(ctx)
	if err != nil || !exists {
		return err
	}
	if err := unifs.DeleteTree(ctx, d); err != nil {
		return err
	}
	if d.url.Path == "/" {
		return nil
	}
	return d.session(ctx, "delete", func(c Conn) error {
		return c.RemoveDir(d.url.Path)
	})
}

func (d *Directory) Rename(ctx context.Context, newName string) error {
	if !validName(newName) {
		return unifs.NewPathError("rename", d.FullName(), unifs.ErrInvalidName)
	}
	exists, err := d.Exists(ctx)
	if err != nil || !exists {
		return err
	}
	target := path.Join(d.parentPath(), newName)
	if err := d.session(ctx, "rename", func(c Conn) error {
		return c.Rename(d.url.Path, target)
	}); err != nil {
		return err
	}
	d.remote = d.with(target)
	return nil
}

// MoveTo renames on the server when target is on the same server and falls
// back to copy and delete otherwise.
func (d *Directory) MoveTo(ctx context.Context, target unifs.Directory) error {
	other, ok := target.(*Directory)
	if !ok || !d.sameServer(&other.remote) {
		return unifs.MoveDirectory(ctx, d, target)
	}

	exists, err := d.Exists(ctx)
	if err != nil || !exists {
		return err
	}
	dst := path.Join(other.url.Path, d.Name())
	if unifs.SamePath(dst, d.url.Path) {
		return nil
	}
	if unifs.IsWithin(dst, d.url.Path) {
		return unifs.NewPathError("move", d.FullName(), unifs.ErrInvalidPath)
	}
	if err := other.Create(ctx); err != nil {
		return err
	}
	return d.session(ctx, "move", func(c Conn) error {
		return c.Rename(d.url.Path, dst)
	})
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
		d.walk(ctx, opt, func(dir string, e *ftp.Entry, isDir bool) bool {
			if isDir || !p.Match(e.Name) {
				return true
			}
			return yield(&File{d.with(path.Join(dir, e.Name))}, nil)
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
		d.walk(ctx, opt, func(dir string, e *ftp.Entry, isDir bool) bool {
			if !isDir || !p.Match(e.Name) {
				return true
			}
			return yield(&Directory{d.with(path.Join(dir, e.Name))}, nil)
		}, func(err error) {
			yield(nil, err)
		})
	}
}

// Watch polls the directory tree, FTP has no change notifications.
func (d *Directory) Watch(ctx context.Context, pattern string) (unifs.ChangeToken, error) {
	return unifs.PollDirectory(ctx, d, pattern, unifs.DefaultPollInterval)
}

// walk lists one directory per connection, depth first. fn returning false
// stops the walk; the first error is passed to fail and also stops it.
func (d *Directory) walk(ctx context.Context, opt unifs.SearchOption, fn func(dir string, e *ftp.Entry, isDir bool) bool, fail func(error)) {
	pending := []string{d.url.Path}
	for len(pending) > 0 {
		dir := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		var files, dirs []*ftp.Entry
		err := d.session(ctx, "enumerate", func(c Conn) error {
			var err error
			files, dirs, err = list(c, dir)
			return err
		})
		if err != nil {
			fail(err)
			return
		}

		for _, e := range files {
			if !fn(dir, e, false) {
				return
			}
		}
		for _, e := range dirs {
			if !fn(dir, e, true) {
				return
			}
		}
		if opt == unifs.SearchAllDirectories {
			for i := len(dirs) - 1; i >= 0; i-- {
				pending = append(pending, path.Join(dir, dirs[i].Name))
			}
		}
	}
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
	e, err := f.entry(ctx, "exists")
	if err != nil {
		return false, err
	}
	return e != nil && e.Type != ftp.EntryTypeFolder, nil
}

// Stat uses the size and time from the detail listing. Servers whose listing
// lacks them produce synthetic values.
func (f *File) Stat(ctx context.Context) (*unifs.FileInfo, error) {
	e, err := f.entry(ctx, "stat")
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, unifs.NewPathError("stat", f.FullName(), unifs.ErrNotExist)
	}
	if e.Type == ftp.EntryTypeFolder {
		return nil, unifs.NewPathError("stat", f.FullName(), unifs.ErrIsDir)
	}
	return f.info(e), nil
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
	return f.session(ctx, "delete", func(c Conn) error {
		return c.Delete(f.url.Path)
	})
}

func (f *File) Rename(ctx context.Context, newName string) error {
	if !validName(newName) {
		return unifs.NewPathError("rename", f.FullName(), unifs.ErrInvalidName)
	}
	exists, err := f.Exists(ctx)
	if err != nil || !exists {
		return err
	}
	target := path.Join(f.parentPath(), newName)
	if err := f.session(ctx, "rename", func(c Conn) error {
		return c.Rename(f.url.Path, target)
	}); err != nil {
		return err
	}
	f.remote = f.with(target)
	return nil
}

func (f *File) MoveTo(ctx context.Context, target unifs.Directory) error {
	other, ok := target.(*Directory)
	if !ok || !f.sameServer(&other.remote) {
		return unifs.MoveFile(ctx, f, target)
	}

	exists, err := f.Exists(ctx)
	if err != nil || !exists {
		return err
	}
	dst := path.Join(other.url.Path, f.Name())
	if dst == f.url.Path {
		return nil
	}
	if err := other.Create(ctx); err != nil {
		return err
	}
	return f.session(ctx, "move", func(c Conn) error {
		return c.Rename(f.url.Path, dst)
	})
}

func (f *File) CopyTo(ctx context.Context, target unifs.Directory, opt unifs.CopyOption) error {
	return unifs.CopyFile(ctx, f, target, opt)
}

func (f *File) ReadBinary(ctx context.Context) ([]byte, error) {
	var data []byte
	err := f.session(ctx, "read", func(c Conn) error {
		r, err := c.Retr(f.url.Path)
		if err != nil {
			return err
		}
		defer r.Close()
		data, err = io.ReadAll(r)
		return err
	})
	return data, err
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

// WriteBinary maps the write mode onto STOR and APPE. ModeOpen and
// ModeOpenOrCreate overlay data on the existing content, which FTP can only
// do by downloading it first.
func (f *File) WriteBinary(ctx context.Context, data []byte, options ...unifs.Option) error {
	mode := unifs.ProcessOptions(options...).Mode

	return f.session(ctx, "write", func(c Conn) error {
		if mode == unifs.ModeAppend {
			return c.Append(f.url.Path, bytes.NewReader(data))
		}
		if mode == unifs.ModeCreate {
			return c.Stor(f.url.Path, bytes.NewReader(data))
		}

		e, err := find(c, f.parentPath(), f.Name())
		if err != nil && !unifs.IsNotExist(err) {
			return err
		}
		exists := e != nil && e.Type != ftp.EntryTypeFolder

		switch mode {
		case unifs.ModeCreateNew:
			if exists {
				return unifs.ErrExist
			}
		case unifs.ModeOpen, unifs.ModeTruncate:
			if !exists {
				return unifs.ErrNotExist
			}
		}

		if (mode == unifs.ModeOpen || mode == unifs.ModeOpenOrCreate) && exists {
			r, err := c.Retr(f.url.Path)
			if err != nil {
				return err
			}
			current, err := io.ReadAll(r)
			r.Close()
			if err != nil {
				return err
			}
			if len(current) > len(data) {
				data = append(append([]byte{}, data...), current[len(data):]...)
			}
		}
		return c.Stor(f.url.Path, bytes.NewReader(data))
	})
}
