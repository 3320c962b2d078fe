package main

import (
	"bytes"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gobeaver/unifs"
	"github.com/gobeaver/unifs/driver/local"
	"github.com/gobeaver/unifs/driver/resource"
)

var assets = fstest.MapFS{
	"templates/mail.txt":   {Data: []byte("Dear customer"), ModTime: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)},
	"templates/footer.txt": {Data: []byte("Regards")},
}

func testRegistry(...unifs.RegistryOption) (*unifs.Registry, error) {
	return unifs.NewRegistry(unifs.WithProviders(
		local.NewProvider(zerolog.Nop()),
		resource.NewProvider(map[string]fs.FS{"app": assets}, zerolog.Nop()),
	)), nil
}

// run executes the CLI and returns what it printed.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(testRegistry)
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	err := root.Execute()
	return out.String(), err
}

func TestPutAndCat(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "notes", "a.txt")

	_, err := run(t, "", "put", file, "hello")
	require.NoError(t, err)
	_, err = run(t, " world", "put", file, "--mode", "append")
	require.NoError(t, err)

	out, err := run(t, "", "cat", file)
	require.NoError(t, err)
	assert.Equal(t, "hello world", out)

	_, err = run(t, "", "put", file, "x", "--mode", "create-new")
	assert.True(t, unifs.IsExist(err), "got %v", err)

	_, err = run(t, "", "put", file, "x", "--mode", "sideways")
	assert.Error(t, err)
}

func TestEncodingFlag(t *testing.T) {
	file := filepath.Join(t.TempDir(), "utf8.txt")

	_, err := run(t, "", "put", file, "café", "--encoding", "utf-8")
	require.NoError(t, err)
	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Len(t, data, 5)

	out, err := run(t, "", "cat", file, "--encoding", "utf-8")
	require.NoError(t, err)
	assert.Equal(t, "café", out)

	_, err = run(t, "", "cat", file, "--encoding", "klingon")
	assert.Error(t, err)
}

func TestLs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("abc"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "b.txt"), []byte("b"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.log"), []byte("c"), 0o644))

	out, err := run(t, "", "ls", dir)
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(dir, "sub")+"/")
	assert.Contains(t, out, "3 B")
	assert.NotContains(t, out, "b.txt")

	out, err = run(t, "", "ls", dir, "-r", "--pattern", "*.txt")
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(dir, "sub", "b.txt"))
	assert.NotContains(t, out, "c.log")

	out, err = run(t, "", "ls", "resource://app/templates")
	require.NoError(t, err)
	assert.Contains(t, out, "resource://app/templates/mail.txt")
	assert.Contains(t, out, "?", "synthetic sizes are not printed")
}

func TestCopyMoveRemove(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out")

	_, err := run(t, "", "cp", "resource://app/templates", out)
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(out, "templates", "mail.txt"))
	require.NoError(t, err)
	assert.Equal(t, "Dear customer", string(data))

	require.NoError(t, os.WriteFile(filepath.Join(out, "templates", "mail.txt"), []byte("edited"), 0o644))
	_, err = run(t, "", "cp", "resource://app/templates/mail.txt", filepath.Join(out, "templates"), "--skip-existing")
	require.NoError(t, err)
	data, err = os.ReadFile(filepath.Join(out, "templates", "mail.txt"))
	require.NoError(t, err)
	assert.Equal(t, "edited", string(data))

	_, err = run(t, "", "cp", "a", "b", "--skip-existing", "--if-newer")
	assert.Error(t, err)

	archive := filepath.Join(dir, "archive")
	_, err = run(t, "", "mv", filepath.Join(out, "templates"), archive)
	require.NoError(t, err)
	assert.NoDirExists(t, filepath.Join(out, "templates"))
	assert.FileExists(t, filepath.Join(archive, "templates", "footer.txt"))

	_, err = run(t, "", "rm", archive)
	require.NoError(t, err)
	assert.NoDirExists(t, archive)

	_, err = run(t, "", "rm", archive)
	require.NoError(t, err, "removing a missing path is a no-op")

	_, err = run(t, "", "cp", filepath.Join(dir, "missing"), out)
	assert.True(t, unifs.IsNotExist(err), "got %v", err)
}

func TestMkdirAndStat(t *testing.T) {
	target := filepath.Join(t.TempDir(), "x", "y")

	_, err := run(t, "", "mkdir", target)
	require.NoError(t, err)
	assert.DirExists(t, target)

	out, err := run(t, "", "stat", target)
	require.NoError(t, err)
	assert.Contains(t, out, "type:      directory")

	out, err = run(t, "", "stat", "resource://app/templates/footer.txt")
	require.NoError(t, err)
	assert.Contains(t, out, "type:      file")
	assert.Contains(t, out, "(7 bytes)")
	assert.Contains(t, out, "metadata not provided")
	assert.Contains(t, out, "content:   text/plain")
}

func TestSum(t *testing.T) {
	file := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(file, []byte("hello"), 0o644))

	out, err := run(t, "", "sum", file)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"), out)

	out, err = run(t, "", "sum", file, "--alg", "md5", "--verify", "5d41402abc4b2a76b9719d911017c592")
	require.NoError(t, err)
	assert.Contains(t, out, "OK")

	_, err = run(t, "", "sum", file, "--alg", "md5", "--verify", "00")
	assert.Error(t, err)

	_, err = run(t, "", "sum", file, "--alg", "rot13")
	assert.Error(t, err)
}

func TestCredentialsFlags(t *testing.T) {
	a := &app{user: "u", password: "p", domain: "corp"}
	opts := unifs.ProcessHandleOptions(a.handleOptions()...)
	require.NotNil(t, opts.Credentials)
	assert.Equal(t, "corp", opts.Credentials.Domain)

	assert.Nil(t, (&app{}).handleOptions())
}

func TestReadOnlyFlag(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(file, []byte("keep"), 0o644))

	out, err := run(t, "", "--read-only", "cat", file)
	require.NoError(t, err)
	assert.Equal(t, "keep", out)

	_, err = run(t, "", "--read-only", "put", file, "changed")
	assert.True(t, unifs.IsReadOnly(err), "got %v", err)

	_, err = run(t, "", "--read-only", "rm", file)
	assert.True(t, unifs.IsReadOnly(err), "got %v", err)

	_, err = run(t, "", "--read-only", "mkdir", filepath.Join(dir, "sub"))
	assert.True(t, unifs.IsReadOnly(err), "got %v", err)

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, "keep", string(data))
	assert.NoDirExists(t, filepath.Join(dir, "sub"))
}

func TestReadOnlyRegistryKeepsLogger(t *testing.T) {
	var logs bytes.Buffer
	logger := zerolog.New(&logs).Level(zerolog.DebugLevel)
	reg := unifs.NewRegistry(
		unifs.WithLogger(logger),
		unifs.WithProviders(local.NewProvider(zerolog.Nop())),
	)

	ro := readOnlyRegistry(reg)
	logs.Reset()

	f, err := ro.OpenFile(filepath.Join(t.TempDir(), "a.txt"))
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "open file")
	assert.True(t, unifs.IsReadOnly(f.Write(context.Background(), "x")))
}
