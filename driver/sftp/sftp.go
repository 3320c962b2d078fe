package sftp

import (
	"bytes"
	"context"
	"io"
	"iter"
	"net/url"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"github.com/rs/zerolog"

	"github.com/gobeaver/unifs"
)

// remote is the part shared by directory and file handles.
type remote struct {
	url    *url.URL
	dial   Dialer
	creds  *unifs.Credentials
	logger zerolog.Logger
}

// Directory is a directory on an SFTP server.
type Directory struct {
	remote
}

// File is a file on an SFTP server.
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

func (r *remote) sameServer(other *remote) bool {
	return r.url.Host == other.url.Host
}

// session opens a connection, runs fn and closes everything again.
func (r *remote) session(ctx context.Context, op string, fn func(*sftp.Client) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	client, closer, err := r.dial(ctx, r.url, r.creds)
	if err != nil {
		return unifs.NewPathError(op, r.FullName(), err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			r.logger.Debug().Err(err).Str("host", r.url.Host).Msg("sftp close failed")
		}
		if closer != nil {
			_ = closer.Close()
		}
	}()

	if err := fn(client); err != nil {
		return unifs.NewPathError(op, r.FullName(), translateError(err))
	}
	return nil
}

// stat returns nil info when the path does not exist.
func (r *remote) stat(ctx context.Context, op string) (os.FileInfo, error) {
	var info os.FileInfo
	err := r.session(ctx, op, func(c *sftp.Client) error {
		fi, err := c.Stat(r.url.Path)
		if err != nil {
			if isNotExist(err) {
				return nil
			}
			return err
		}
		info = fi
		return nil
	})
	return info, err
}

func (r *remote) info(fi os.FileInfo) *unifs.FileInfo {
	modified := fi.ModTime().UTC()
	accessed := modified
	if st, ok := fi.Sys().(*sftp.FileStat); ok && st.Atime != 0 {
		accessed = time.Unix(int64(st.Atime), 0).UTC()
	}
	if modified.IsZero() || fi.ModTime().Unix() == 0 {
		info := unifs.SyntheticInfo(r.Name(), r.FullName(), fi.IsDir())
		info.Size = fi.Size()
		return info
	}
	return &unifs.FileInfo{
		Name:     r.Name(),
		FullName: r.FullName(),
		Size:     fi.Size(),
		Created:  modified,
		Modified: modified,
		Accessed: accessed,
		IsDir:    fi.IsDir(),
	}
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
	fi, err := d.stat(ctx, "exists")
	if err != nil {
		return false, err
	}
	return fi != nil && fi.IsDir(), nil
}

// Stat reports the total size of all files below the directory.
func (d *Directory) Stat(ctx context.Context) (*unifs.FileInfo, error) {
	var info *unifs.FileInfo
	err := d.session(ctx, "stat", func(c *sftp.Client) error {
		fi, err := c.Stat(d.url.Path)
		if err != nil {
			return err
		}
		if !fi.IsDir() {
			return unifs.ErrNotDir
		}
		info = d.info(fi)
		info.Size = 0

		walker := c.Walk(d.url.Path)
		for walker.Step() {
			if err := walker.Err(); err != nil {
				return err
			}
			if st := walker.Stat(); st != nil && st.Mode().IsRegular() {
				info.Size += st.Size()
			}
		}
		return nil
	})
	return info, err
}

func (d *Directory) Create(ctx context.Context) error {
	return d.session(ctx, "create", func(c *sftp.Client) error {
		return c.MkdirAll(d.url.Path)
	})
}

func (d *Directory) Delete(ctx context.Context) error {
	exists, err := d.Exists(ctx)
	if err != nil || !exists {
		return err
	}
	return d.session(ctx, "delete", func(c *sftp.Client) error {
		if d.url.Path == "/" {
			entries, err := c.ReadDir("/")
			if err != nil {
				return err
			}
			for _, e := range entries {
				if err := c.RemoveAll(path.Join("/", e.Name())); err != nil {
					return err
				}
			}
			return nil
		}
		return c.RemoveAll(d.url.Path)
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
	if err := d.session(ctx, "rename", func(c *sftp.Client) error {
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
	return d.session(ctx, "move", func(c *sftp.Client) error {
		if err := c.MkdirAll(other.url.Path); err != nil {
			return err
		}
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
		d.walk(ctx, opt, func(dir string, fi os.FileInfo) bool {
			if fi.IsDir() || !p.Match(fi.Name()) {
				return true
			}
			return yield(&File{d.with(path.Join(dir, fi.Name()))}, nil)
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
		d.walk(ctx, opt, func(dir string, fi os.FileInfo) bool {
			if !fi.IsDir() || !p.Match(fi.Name()) {
				return true
			}
			return yield(&Directory{d.with(path.Join(dir, fi.Name()))}, nil)
		}, func(err error) {
			yield(nil, err)
		})
	}
}

// walk reads one directory per connection, depth first, files before
// directories. A missing start directory lists nothing.
func (d *Directory) walk(ctx context.Context, opt unifs.SearchOption, fn func(dir string, fi os.FileInfo) bool, fail func(error)) {
	pending := []string{d.url.Path}
	for len(pending) > 0 {
		dir := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		var entries []os.FileInfo
		err := d.session(ctx, "enumerate", func(c *sftp.Client) error {
			var err error
			entries, err = c.ReadDir(dir)
			if err != nil && isNotExist(err) && dir == d.url.Path {
				return nil
			}
			return err
		})
		if err != nil {
			fail(err)
			return
		}

		sort.SliceStable(entries, func(i, j int) bool {
			if entries[i].IsDir() != entries[j].IsDir() {
				return !entries[i].IsDir()
			}
			return entries[i].Name() < entries[j].Name()
		})

		var dirs []string
		for _, fi := range entries {
			if fi.Name() == "." || fi.Name() == ".." {
				continue
			}
			if !fn(dir, fi) {
				return
			}
			if fi.IsDir() {
				dirs = append(dirs, path.Join(dir, fi.Name()))
			}
		}
		if opt == unifs.SearchAllDirectories {
			for i := len(dirs) - 1; i >= 0; i-- {
				pending = append(pending, dirs[i])
			}
		}
	}
}

// Watch polls the directory tree, SFTP has no change notifications.
func (d *Directory) Watch(ctx context.Context, pattern string) (unifs.ChangeToken, error) {
	return unifs.PollDirectory(ctx, d, pattern, unifs.DefaultPollInterval)
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
	fi, err := f.stat(ctx, "exists")
	if err != nil {
		return false, err
	}
	return fi != nil && !fi.IsDir(), nil
}

func (f *File) Stat(ctx context.Context) (*unifs.FileInfo, error) {
	fi, err := f.stat(ctx, "stat")
	if err != nil {
		return nil, err
	}
	if fi == nil {
		return nil, unifs.NewPathError("stat", f.FullName(), unifs.ErrNotExist)
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

func (f *File) Delete(ctx context.Context) error {
	exists, err := f.Exists(ctx)
	if err != nil || !exists {
		return err
	}
	return f.session(ctx, "delete", func(c *sftp.Client) error {
		return c.Remove(f.url.Path)
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
	if err := f.session(ctx, "rename", func(c *sftp.Client) error {
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
	return f.session(ctx, "move", func(c *sftp.Client) error {
		if err := c.MkdirAll(other.url.Path); err != nil {
			return err
		}
		if _, err := c.Stat(dst); err == nil {
			if err := c.Remove(dst); err != nil {
				return err
			}
		}
		return c.Rename(f.url.Path, dst)
	})
}

func (f *File) CopyTo(ctx context.Context, target unifs.Directory, opt unifs.CopyOption) error {
	return unifs.CopyFile(ctx, f, target, opt)
}

func (f *File) ReadBinary(ctx context.Context) ([]byte, error) {
	var buf bytes.Buffer
	err := f.session(ctx, "read", func(c *sftp.Client) error {
		r, err := c.Open(f.url.Path)
		if err != nil {
			return err
		}
		defer r.Close()
		_, err = r.WriteTo(&buf)
		return err
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
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

// WriteBinary opens the remote file with flags derived from the write mode.
// Existence checks run on the same connection as the write. Append seeks to
// the current size instead of relying on server side append support.
func (f *File) WriteBinary(ctx context.Context, data []byte, options ...unifs.Option) error {
	mode := unifs.ProcessOptions(options...).Mode

	return f.session(ctx, "write", func(c *sftp.Client) error {
		var size int64
		exists := false
		fi, err := c.Stat(f.url.Path)
		switch {
		case err == nil && fi.IsDir():
			return unifs.ErrIsDir
		case err == nil:
			exists, size = true, fi.Size()
		case !isNotExist(err):
			return err
		}

		flags := os.O_WRONLY
		switch mode {
		case unifs.ModeCreateNew:
			if exists {
				return unifs.ErrExist
			}
			flags |= os.O_CREATE | os.O_TRUNC
		case unifs.ModeOpen:
			if !exists {
				return unifs.ErrNotExist
			}
		case unifs.ModeTruncate:
			if !exists {
				return unifs.ErrNotExist
			}
			flags |= os.O_TRUNC
		case unifs.ModeOpenOrCreate, unifs.ModeAppend:
			flags |= os.O_CREATE
		default:
			flags |= os.O_CREATE | os.O_TRUNC
		}

		if !exists {
			if err := c.MkdirAll(f.parentPath()); err != nil {
				return err
			}
		}

		w, err := c.OpenFile(f.url.Path, flags)
		if err != nil {
			return err
		}
		if mode == unifs.ModeAppend && size > 0 {
			if _, err := w.Seek(size, io.SeekStart); err != nil {
				_ = w.Close()
				return err
			}
		}
		if _, err := w.Write(data); err != nil {
			_ = w.Close()
			return err
		}
		return w.Close()
	})
}
