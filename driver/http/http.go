package http

import (
	"context"
	"iter"
	nethttp "net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"emperror.dev/errors"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/gobeaver/unifs"
)

// remote is the part shared by directory and file handles.
type remote struct {
	url    *url.URL
	client *resty.Client
	creds  *unifs.Credentials
	logger zerolog.Logger
}

// Directory is a URL prefix. It always exists and never lists anything.
type Directory struct {
	remote
}

// File is a single URL.
type File struct {
	remote
}

var (
	_ unifs.Directory = (*Directory)(nil)
	_ unifs.File      = (*File)(nil)
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

func (r *remote) with(p string) remote {
	u := *r.url
	u.Path = cleanPath(p)
	u.RawQuery = ""
	return remote{url: &u, client: r.client, creds: r.creds, logger: r.logger}
}

func (r *remote) request(ctx context.Context) *resty.Request {
	req := r.client.R().SetContext(ctx)
	if !r.creds.Empty() {
		user := r.creds.UserName
		if r.creds.Domain != "" {
			user = r.creds.Domain + `\` + user
		}
		req.SetBasicAuth(user, r.creds.Password)
	}
	return req
}

// check turns transport failures and non-2xx answers into errors.
func (r *remote) check(op string, resp *resty.Response, err error) error {
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return unifs.NewPathError(op, r.FullName(), err)
	}
	if resp.IsSuccess() {
		return nil
	}

	return unifs.NewPathError(op, r.FullName(), &unifs.StatusError{
		Method:     resp.Request.Method,
		URL:        r.FullName(),
		StatusCode: resp.StatusCode(),
		Status:     resp.Status(),
	})
}

// head issues HEAD and reports whether the resource exists.
func (r *remote) head(ctx context.Context) (*resty.Response, bool, error) {
	resp, err := r.request(ctx).Head(r.FullName())
	if err := r.check("head", resp, err); err != nil {
		if unifs.IsNotExist(err) {
			return resp, false, nil
		}
		return nil, false, err
	}
	return resp, true, nil
}

func (r *remote) delete(ctx context.Context) error {
	resp, err := r.request(ctx).Delete(r.FullName())
	if err := r.check("delete", resp, err); err != nil && !unifs.IsNotExist(err) {
		return err
	}
	return nil
}

// ============================================================================
// Directory
// ============================================================================

func (d *Directory) Parent() unifs.Directory {
	if d.url.Path == "/" {
		return nil
	}
	return &Directory{d.with(path.Dir(d.url.Path))}
}

func (d *Directory) Root() unifs.Directory {
	return &Directory{d.with("/")}
}

// Exists always reports true; HTTP has no notion of directories.
func (d *Directory) Exists(context.Context) (bool, error) {
	return true, nil
}

func (d *Directory) Stat(context.Context) (*unifs.FileInfo, error) {
	return unifs.SyntheticInfo(d.Name(), d.FullName(), true), nil
}

// Create does nothing.
func (d *Directory) Create(context.Context) error {
	return nil
}

// Delete sends DELETE to the directory URL. A missing resource is not an
// error.
func (d *Directory) Delete(ctx context.Context) error {
	return d.delete(ctx)
}

// Rename does nothing.
func (d *Directory) Rename(context.Context, string) error {
	return nil
}

func (d *Directory) MoveTo(ctx context.Context, target unifs.Directory) error {
	return unifs.MoveDirectory(ctx, d, target)
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

// EnumerateFiles yields nothing.
func (d *Directory) EnumerateFiles(context.Context, string, unifs.SearchOption) iter.Seq2[unifs.File, error] {
	return unifs.EmptySeq[unifs.File]()
}

// EnumerateDirectories yields nothing.
func (d *Directory) EnumerateDirectories(context.Context, string, unifs.SearchOption) iter.Seq2[unifs.Directory, error] {
	return unifs.EmptySeq[unifs.Directory]()
}

// ============================================================================
// File
// ============================================================================

func (f *File) Extension() string {
	return path.Ext(f.url.Path)
}

func (f *File) Directory() unifs.Directory {
	return &Directory{f.with(path.Dir(f.url.Path))}
}

func (f *File) Exists(ctx context.Context) (bool, error) {
	_, exists, err := f.head(ctx)
	return exists, err
}

// Stat reads Content-Length and Last-Modified from a HEAD response. Missing
// headers are replaced with synthetic values.
func (f *File) Stat(ctx context.Context) (*unifs.FileInfo, error) {
	resp, exists, err := f.head(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, unifs.NewPathError("stat", f.FullName(), unifs.ErrNotExist)
	}

	info := unifs.SyntheticInfo(f.Name(), f.FullName(), false)
	if n, err := strconv.ParseInt(resp.Header().Get("Content-Length"), 10, 64); err == nil {
		info.Size = n
	} else if resp.RawResponse != nil && resp.RawResponse.ContentLength > 0 {
		info.Size = resp.RawResponse.ContentLength
	}
	if lm := resp.Header().Get("Last-Modified"); lm != "" {
		if t, err := nethttp.ParseTime(lm); err == nil {
			t = t.UTC()
			info.Created, info.Modified, info.Accessed = t, t, t
			info.Synthetic = false
		}
	}
	return info, nil
}

func (f *File) Length(ctx context.Context) (int64, error) {
	info, err := f.Stat(ctx)
	if err != nil {
		return 0, err
	}
	return info.Size, nil
}

func (f *File) Delete(ctx context.Context) error {
	return f.delete(ctx)
}

// Rename downloads the file, uploads it under the new name and deletes the
// original.
func (f *File) Rename(ctx context.Context, newName string) error {
	if newName == "" || newName == "." || newName == ".." || strings.ContainsAny(newName, `/\`) {
		return unifs.NewPathError("rename", f.FullName(), unifs.ErrInvalidName)
	}
	exists, err := f.Exists(ctx)
	if err != nil || !exists {
		return err
	}

	data, err := f.ReadBinary(ctx)
	if err != nil {
		return err
	}
	target := &File{f.with(path.Join(path.Dir(f.url.Path), newName))}
	if err := target.WriteBinary(ctx, data); err != nil {
		return err
	}
	if err := f.delete(ctx); err != nil {
		return err
	}
	f.remote = target.remote
	return nil
}

func (f *File) MoveTo(ctx context.Context, target unifs.Directory) error {
	return unifs.MoveFile(ctx, f, target)
}

func (f *File) CopyTo(ctx context.Context, target unifs.Directory, opt unifs.CopyOption) error {
	return unifs.CopyFile(ctx, f, target, opt)
}

func (f *File) ReadBinary(ctx context.Context) ([]byte, error) {
	resp, err := f.request(ctx).Get(f.FullName())
	if err := f.check("read", resp, err); err != nil {
		return nil, err
	}
	return resp.Body(), nil
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

// WriteBinary uploads data. ModeCreateNew and ModeAppend use POST, the other
// modes use PUT. ModeOpen and ModeTruncate check with HEAD that the file
// exists first.
func (f *File) WriteBinary(ctx context.Context, data []byte, options ...unifs.Option) error {
	mode := unifs.ProcessOptions(options...).Mode

	if mode == unifs.ModeOpen || mode == unifs.ModeTruncate {
		exists, err := f.Exists(ctx)
		if err != nil {
			return err
		}
		if !exists {
			return unifs.NewPathError("write", f.FullName(), unifs.ErrNotExist)
		}
	}

	req := f.request(ctx).
		SetHeader("Content-Type", unifs.GuessContentType(f.Name(), data)).
		SetBody(data)

	var (
		resp *resty.Response
		err  error
	)
	switch mode {
	case unifs.ModeCreateNew:
		resp, err = req.SetHeader("If-None-Match", "*").Post(f.FullName())
	case unifs.ModeAppend:
		resp, err = req.Post(f.FullName())
	default:
		resp, err = req.Put(f.FullName())
	}
	return f.check("write", resp, err)
}
