package sftp

import (
	"context"
	"io"
	"net"
	"net/url"
	"sync/atomic"
	"testing"

	"emperror.dev/errors"
	"github.com/pkg/sftp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gobeaver/unifs"
	"github.com/gobeaver/unifs/driver/local"
)

// memBackend serves an in-memory filesystem over a pipe for every dial.
type memBackend struct {
	handlers sftp.Handlers
	user     string
	dials    atomic.Int32
	closes   atomic.Int32
}

func (b *memBackend) dialer() Dialer {
	return func(_ context.Context, _ *url.URL, creds *unifs.Credentials) (*sftp.Client, io.Closer, error) {
		if b.user != "" && (creds.Empty() || creds.UserName != b.user) {
			return nil, nil, errors.WithMessage(unifs.ErrPermission, "ssh: unable to authenticate")
		}
		serverConn, clientConn := net.Pipe()
		server := sftp.NewRequestServer(serverConn, b.handlers)
		go func() {
			_ = server.Serve()
			_ = server.Close()
		}()

		client, err := sftp.NewClientPipe(clientConn, clientConn)
		if err != nil {
			_ = serverConn.Close()
			return nil, nil, err
		}
		b.dials.Add(1)
		return client, closeFunc(func() error {
			b.closes.Add(1)
			return serverConn.Close()
		}), nil
	}
}

type closeFunc func() error

func (f closeFunc) Close() error { return f() }

func setup(t *testing.T) (*memBackend, *unifs.Registry) {
	t.Helper()
	b := &memBackend{handlers: sftp.InMemHandler()}
	reg := unifs.NewRegistry()
	require.NoError(t, reg.Register(NewProvider(b.dialer(), zerolog.Nop())))
	require.NoError(t, reg.Register(local.NewProvider(zerolog.Nop())))
	return b, reg
}

func names[T interface{ Name() string }](items []T) []string {
	result := make([]string, 0, len(items))
	for _, item := range items {
		result = append(result, item.Name())
	}
	return result
}

func write(t *testing.T, reg *unifs.Registry, p, content string) {
	t.Helper()
	f, err := reg.OpenFile("sftp://example.com" + p)
	require.NoError(t, err)
	require.NoError(t, f.Write(context.Background(), content))
}

func read(t *testing.T, reg *unifs.Registry, p string) string {
	t.Helper()
	f, err := reg.OpenFile("sftp://example.com" + p)
	require.NoError(t, err)
	got, err := f.Read(context.Background())
	require.NoError(t, err)
	return got
}

func TestNormalize(t *testing.T) {
	got, err := Normalize(`SFTP://root:pw@Host.Example.COM:2222\srv\..\data\a.txt?x=1`)
	require.NoError(t, err)
	assert.Equal(t, "sftp://host.example.com:2222/data/a.txt", got)

	_, err = Normalize("ftp://example.com/a")
	assert.ErrorIs(t, err, unifs.ErrInvalidPath)
}

func TestWriteRead(t *testing.T) {
	ctx := context.Background()
	b, reg := setup(t)

	f, err := reg.OpenFile("sftp://example.com/home/data/hello.txt")
	require.NoError(t, err)

	exists, err := f.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, f.Write(ctx, "hello"))
	assert.Equal(t, "hello", read(t, reg, "/home/data/hello.txt"))

	n, err := f.Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	info, err := f.Stat(ctx)
	require.NoError(t, err)
	assert.False(t, info.IsDir)
	assert.Equal(t, "hello.txt", info.Name)
	assert.Equal(t, ".txt", f.Extension())
	assert.Equal(t, "sftp://example.com/home/data", f.Directory().FullName())

	assert.Equal(t, b.dials.Load(), b.closes.Load(), "every session must be closed")
}

func TestWriteModes(t *testing.T) {
	ctx := context.Background()
	_, reg := setup(t)
	write(t, reg, "/a.txt", "hello")

	f, err := reg.OpenFile("sftp://example.com/a.txt")
	require.NoError(t, err)

	err = f.Write(ctx, "x", unifs.WithMode(unifs.ModeCreateNew))
	assert.True(t, unifs.IsExist(err), "create new on existing: %v", err)

	require.NoError(t, f.Write(ctx, "HE", unifs.WithMode(unifs.ModeOpen)))
	assert.Equal(t, "HEllo", read(t, reg, "/a.txt"))

	require.NoError(t, f.Write(ctx, "!", unifs.WithMode(unifs.ModeAppend)))
	assert.Equal(t, "HEllo!", read(t, reg, "/a.txt"))

	require.NoError(t, f.Write(ctx, "z", unifs.WithMode(unifs.ModeTruncate)))
	assert.Equal(t, "z", read(t, reg, "/a.txt"))

	missing, err := reg.OpenFile("sftp://example.com/b.txt")
	require.NoError(t, err)
	err = missing.Write(ctx, "x", unifs.WithMode(unifs.ModeOpen))
	assert.True(t, unifs.IsNotExist(err), "open on missing: %v", err)
	require.NoError(t, missing.Write(ctx, "new", unifs.WithMode(unifs.ModeOpenOrCreate)))
	assert.Equal(t, "new", read(t, reg, "/b.txt"))
}

func TestEnumerate(t *testing.T) {
	ctx := context.Background()
	_, reg := setup(t)
	write(t, reg, "/data/a.txt", "a")
	write(t, reg, "/data/b.log", "bb")
	write(t, reg, "/data/sub/c.txt", "ccc")
	write(t, reg, "/data/sub/deep/d.txt", "dddd")

	d, err := reg.OpenDirectory("sftp://example.com/data")
	require.NoError(t, err)

	top, err := unifs.Collect(d.EnumerateFiles(ctx, "", unifs.SearchTopDirectoryOnly))
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.log"}, names(top))

	all, err := unifs.Collect(d.EnumerateFiles(ctx, "*.txt", unifs.SearchAllDirectories))
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "c.txt", "d.txt"}, names(all))

	dirs, err := unifs.Collect(d.EnumerateDirectories(ctx, "", unifs.SearchAllDirectories))
	require.NoError(t, err)
	assert.Equal(t, []string{"sub", "deep"}, names(dirs))

	info, err := d.Stat(ctx)
	require.NoError(t, err)
	assert.True(t, info.IsDir)
	assert.Equal(t, int64(10), info.Size)

	missing := d.ChildDirectory("nope")
	files, err := unifs.Collect(missing.EnumerateFiles(ctx, "", unifs.SearchAllDirectories))
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestDirectory(t *testing.T) {
	ctx := context.Background()
	_, reg := setup(t)

	d, err := reg.OpenDirectory("sftp://example.com/x/y/z")
	require.NoError(t, err)

	exists, err := d.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, d.Create(ctx))
	require.NoError(t, d.Create(ctx), "create must be idempotent")
	exists, err = d.Exists(ctx)
	require.NoError(t, err)
	assert.True(t, exists)

	assert.Nil(t, d.Root().Parent())
	assert.Equal(t, "sftp://example.com/x/y", d.Parent().FullName())
	assert.Equal(t, "example.com", d.Root().Name())

	write(t, reg, "/x/y/z/file.txt", "f")
	top, err := reg.OpenDirectory("sftp://example.com/x")
	require.NoError(t, err)
	require.NoError(t, top.Delete(ctx))
	exists, err = top.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, exists)
	require.NoError(t, top.Delete(ctx), "second delete must be a no-op")
}

func TestRenameAndMove(t *testing.T) {
	ctx := context.Background()
	_, reg := setup(t)
	write(t, reg, "/src/a.txt", "a")

	f, err := reg.OpenFile("sftp://example.com/src/a.txt")
	require.NoError(t, err)
	require.NoError(t, f.Rename(ctx, "renamed.txt"))
	assert.Equal(t, "sftp://example.com/src/renamed.txt", f.FullName())
	assert.Equal(t, "a", read(t, reg, "/src/renamed.txt"))
	assert.ErrorIs(t, f.Rename(ctx, "a/b"), unifs.ErrInvalidName)

	dst, err := reg.OpenDirectory("sftp://example.com/dst")
	require.NoError(t, err)
	require.NoError(t, f.MoveTo(ctx, dst))
	assert.Equal(t, "a", read(t, reg, "/dst/renamed.txt"))
	exists, err := f.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, f.MoveTo(ctx, dst), "moving a missing file is a no-op")

	err = dst.MoveTo(ctx, dst.ChildDirectory("inner"))
	assert.ErrorIs(t, err, unifs.ErrInvalidPath)
}

func TestCopyBetweenBackends(t *testing.T) {
	ctx := context.Background()
	_, reg := setup(t)
	write(t, reg, "/pub/readme.txt", "read me")
	write(t, reg, "/pub/docs/guide.txt", "guide")

	src, err := reg.OpenDirectory("sftp://example.com/pub")
	require.NoError(t, err)
	target, err := reg.OpenDirectory(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, src.CopyTo(ctx, target, unifs.CopyAlways))

	got, err := target.ChildDirectory("pub").ChildDirectory("docs").ChildFile("guide.txt").Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "guide", got)

	localFile := target.ChildDirectory("pub").ChildFile("readme.txt")
	back, err := reg.OpenDirectory("sftp://example.com/incoming")
	require.NoError(t, err)
	require.NoError(t, localFile.MoveTo(ctx, back))
	assert.Equal(t, "read me", read(t, reg, "/incoming/readme.txt"))
	exists, err := localFile.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCredentials(t *testing.T) {
	ctx := context.Background()
	b, reg := setup(t)
	write(t, reg, "/private.txt", "secret")
	b.user = "alice"

	anon, err := reg.OpenFile("sftp://example.com/private.txt")
	require.NoError(t, err)
	_, err = anon.Read(ctx)
	assert.True(t, unifs.IsPermission(err), "expected permission error, got %v", err)

	authed, err := reg.OpenFile("sftp://example.com/private.txt", unifs.WithCredentials("alice", "pw", ""))
	require.NoError(t, err)
	got, err := authed.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "secret", got)
}

func TestNewDialerWithoutAuth(t *testing.T) {
	dial, err := NewDialer(DialConfig{}, zerolog.Nop())
	require.NoError(t, err)

	u, err := url.Parse("sftp://127.0.0.1:1/")
	require.NoError(t, err)
	_, _, err = dial(context.Background(), u, nil)
	assert.ErrorIs(t, err, unifs.ErrPermission)

	_, err = NewDialer(DialConfig{PrivateKey: []byte("not a key")}, zerolog.Nop())
	assert.Error(t, err)
}
