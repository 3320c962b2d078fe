package unifs

import (
	"context"
	"iter"

	"emperror.dev/errors"
)

// ErrReadOnly is returned when a write operation is attempted through a
// read-only handle.
var ErrReadOnly = errors.NewPlain("read-only")

// ============================================================================
// Read-only Decorators
// ============================================================================

// ReadOnlyOptions configures read-only handles.
type ReadOnlyOptions struct {
	// AllowCreateDir permits Directory.Create.
	AllowCreateDir bool

	// AllowDelete permits Delete on files and directories.
	AllowDelete bool

	// OnWriteAttempt is called for every blocked operation. Returning nil
	// lets the operation through; the default returns ErrReadOnly.
	OnWriteAttempt func(op, path string) error
}

// ReadOnlyOption is a functional option for read-only handles.
type ReadOnlyOption func(*ReadOnlyOptions)

// WithAllowCreateDir allows directory creation in read-only mode.
func WithAllowCreateDir(allow bool) ReadOnlyOption {
	return func(o *ReadOnlyOptions) {
		o.AllowCreateDir = allow
	}
}

// WithAllowDelete allows deletion in read-only mode.
func WithAllowDelete(allow bool) ReadOnlyOption {
	return func(o *ReadOnlyOptions) {
		o.AllowDelete = allow
	}
}

// WithWriteAttemptHandler sets a custom handler for write attempts.
func WithWriteAttemptHandler(handler func(op, path string) error) ReadOnlyOption {
	return func(o *ReadOnlyOptions) {
		o.OnWriteAttempt = handler
	}
}

type readOnlyPolicy struct {
	opts ReadOnlyOptions
}

func newReadOnlyPolicy(options ...ReadOnlyOption) *readOnlyPolicy {
	p := &readOnlyPolicy{}
	for _, option := range options {
		option(&p.opts)
	}
	return p
}

// deny returns the error for a blocked operation, or nil when the write
// handler lets it through.
func (p *readOnlyPolicy) deny(op, path string) error {
	if p.opts.OnWriteAttempt != nil {
		return NewPathError(op, path, p.opts.OnWriteAttempt(op, path))
	}
	return NewPathError(op, path, ErrReadOnly)
}

func (p *readOnlyPolicy) dir(d Directory) Directory {
	if d == nil {
		return nil
	}
	return &readOnlyDirectory{Directory: d, policy: p}
}

func (p *readOnlyPolicy) file(f File) File {
	if f == nil {
		return nil
	}
	return &readOnlyFile{File: f, policy: p}
}

// ReadOnlyDirectory wraps dir so that every handle reached through it
// refuses writes. Reads, enumeration and copies out of it are delegated.
//
//	dir, _ := reg.OpenDirectory("ftp://mirror.example.com/pub")
//	safe := unifs.ReadOnlyDirectory(dir)
//	err := safe.ChildFile("x.txt").Write(ctx, "x") // wraps ErrReadOnly
func ReadOnlyDirectory(dir Directory, options ...ReadOnlyOption) Directory {
	return newReadOnlyPolicy(options...).dir(dir)
}

// ReadOnlyFile wraps f so that it refuses writes.
func ReadOnlyFile(f File, options ...ReadOnlyOption) File {
	return newReadOnlyPolicy(options...).file(f)
}

// ReadOnlyProvider returns a provider with the same name and matching rules
// as p whose handles are read-only.
func ReadOnlyProvider(p *Provider, options ...ReadOnlyOption) *Provider {
	policy := newReadOnlyPolicy(options...)
	return &Provider{
		Name:         p.Name,
		Match:        p.Match,
		AbsolutePath: p.AbsolutePath,
		NewDirectory: func(path string, opts *HandleOptions) (Directory, error) {
			d, err := p.NewDirectory(path, opts)
			if err != nil {
				return nil, err
			}
			return policy.dir(d), nil
		},
		NewFile: func(path string, opts *HandleOptions) (File, error) {
			f, err := p.NewFile(path, opts)
			if err != nil {
				return nil, err
			}
			return policy.file(f), nil
		},
	}
}

// IsReadOnly reports whether err was caused by a read-only handle.
func IsReadOnly(err error) bool {
	return errors.Is(err, ErrReadOnly)
}

type readOnlyDirectory struct {
	Directory
	policy *readOnlyPolicy
}

var (
	_ Directory = (*readOnlyDirectory)(nil)
	_ CanWatch  = (*readOnlyDirectory)(nil)
)

func (d *readOnlyDirectory) Parent() Directory {
	return d.policy.dir(d.Directory.Parent())
}

func (d *readOnlyDirectory) Root() Directory {
	return d.policy.dir(d.Directory.Root())
}

func (d *readOnlyDirectory) ChildFile(name string) File {
	return d.policy.file(d.Directory.ChildFile(name))
}

func (d *readOnlyDirectory) ChildDirectory(name string) Directory {
	return d.policy.dir(d.Directory.ChildDirectory(name))
}

func (d *readOnlyDirectory) Create(ctx context.Context) error {
	if !d.policy.opts.AllowCreateDir {
		if err := d.policy.deny("create", d.FullName()); err != nil {
			return err
		}
	}
	return d.Directory.Create(ctx)
}

func (d *readOnlyDirectory) Delete(ctx context.Context) error {
	if !d.policy.opts.AllowDelete {
		if err := d.policy.deny("delete", d.FullName()); err != nil {
			return err
		}
	}
	return d.Directory.Delete(ctx)
}

func (d *readOnlyDirectory) Rename(ctx context.Context, newName string) error {
	if err := d.policy.deny("rename", d.FullName()); err != nil {
		return err
	}
	return d.Directory.Rename(ctx, newName)
}

func (d *readOnlyDirectory) MoveTo(ctx context.Context, target Directory) error {
	if err := d.policy.deny("move", d.FullName()); err != nil {
		return err
	}
	return d.Directory.MoveTo(ctx, target)
}

func (d *readOnlyDirectory) EnumerateFiles(ctx context.Context, pattern string, opt SearchOption) iter.Seq2[File, error] {
	return func(yield func(File, error) bool) {
		for f, err := range d.Directory.EnumerateFiles(ctx, pattern, opt) {
			if !yield(d.policy.file(f), err) {
				return
			}
		}
	}
}

func (d *readOnlyDirectory) EnumerateDirectories(ctx context.Context, pattern string, opt SearchOption) iter.Seq2[Directory, error] {
	return func(yield func(Directory, error) bool) {
		for sub, err := range d.Directory.EnumerateDirectories(ctx, pattern, opt) {
			if !yield(d.policy.dir(sub), err) {
				return
			}
		}
	}
}

// Watch delegates when the wrapped directory can watch.
func (d *readOnlyDirectory) Watch(ctx context.Context, pattern string) (ChangeToken, error) {
	if w, ok := d.Directory.(CanWatch); ok {
		return w.Watch(ctx, pattern)
	}
	return NeverChangeToken{}, nil
}

type readOnlyFile struct {
	File
	policy *readOnlyPolicy
}

var _ File = (*readOnlyFile)(nil)

func (f *readOnlyFile) Directory() Directory {
	return f.policy.dir(f.File.Directory())
}

func (f *readOnlyFile) Delete(ctx context.Context) error {
	if !f.policy.opts.AllowDelete {
		if err := f.policy.deny("delete", f.FullName()); err != nil {
			return err
		}
	}
	return f.File.Delete(ctx)
}

func (f *readOnlyFile) Rename(ctx context.Context, newName string) error {
	if err := f.policy.deny("rename", f.FullName()); err != nil {
		return err
	}
	return f.File.Rename(ctx, newName)
}

func (f *readOnlyFile) MoveTo(ctx context.Context, target Directory) error {
	if err := f.policy.deny("move", f.FullName()); err != nil {
		return err
	}
	return f.File.MoveTo(ctx, target)
}

func (f *readOnlyFile) Write(ctx context.Context, content string, options ...Option) error {
	if err := f.policy.deny("write", f.FullName()); err != nil {
		return err
	}
	return f.File.Write(ctx, content, options...)
}

func (f *readOnlyFile) WriteBinary(ctx context.Context, data []byte, options ...Option) error {
	if err := f.policy.deny("write", f.FullName()); err != nil {
		return err
	}
	return f.File.WriteBinary(ctx, data, options...)
}
