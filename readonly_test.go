package unifs_test

import (
	"context"
	"testing"

	"emperror.dev/errors"
	"github.com/rs/zerolog"

	"github.com/gobeaver/unifs"
	"github.com/gobeaver/unifs/driver/memory"
)

func TestReadOnlyDirectory(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(t)
	writeFile(t, reg, "memory://docs/a.txt", "a")
	writeFile(t, reg, "memory://docs/sub/b.txt", "b")

	ro := unifs.ReadOnlyDirectory(mustOpenDir(t, reg, "memory://docs"))

	t.Run("reads are delegated", func(t *testing.T) {
		files, err := unifs.Collect(ro.EnumerateFiles(ctx, "*.txt", unifs.SearchAllDirectories))
		if err != nil {
			t.Fatalf("EnumerateFiles() error = %v", err)
		}
		if len(files) != 2 {
			t.Fatalf("EnumerateFiles() = %d files, want 2", len(files))
		}
		text, err := files[0].Read(ctx)
		if err != nil || text != "a" {
			t.Errorf("Read() = %q, %v", text, err)
		}
	})

	t.Run("writes are blocked", func(t *testing.T) {
		ops := map[string]func() error{
			"write":        func() error { return ro.ChildFile("new.txt").Write(ctx, "x") },
			"write binary": func() error { return ro.ChildFile("a.txt").WriteBinary(ctx, []byte("x")) },
			"create":       func() error { return ro.ChildDirectory("new").Create(ctx) },
			"delete dir":   func() error { return ro.ChildDirectory("sub").Delete(ctx) },
			"delete file":  func() error { return ro.ChildFile("a.txt").Delete(ctx) },
			"rename":       func() error { return ro.ChildFile("a.txt").Rename(ctx, "c.txt") },
			"move":         func() error { return ro.MoveTo(ctx, mustOpenDir(t, reg, "memory://elsewhere")) },
			"parent":       func() error { return ro.ChildDirectory("sub").Parent().ChildFile("z.txt").Write(ctx, "z") },
			"file dir":     func() error { return ro.ChildFile("a.txt").Directory().Create(ctx) },
		}
		for name, op := range ops {
			t.Run(name, func(t *testing.T) {
				err := op()
				if !unifs.IsReadOnly(err) {
					t.Errorf("error = %v, want ErrReadOnly", err)
				}
			})
		}

		if readFile(t, reg, "memory://docs/a.txt") != "a" {
			t.Error("read-only handle modified the file")
		}
		if ok, _ := mustOpenFile(t, reg, "memory://docs/new.txt").Exists(ctx); ok {
			t.Error("read-only handle created a file")
		}
	})

	t.Run("copy out of read-only", func(t *testing.T) {
		target := mustOpenDir(t, reg, "memory://backup")
		if err := ro.CopyTo(ctx, target, unifs.CopyAlways); err != nil {
			t.Fatalf("CopyTo() error = %v", err)
		}
		if got := readFile(t, reg, "memory://backup/docs/sub/b.txt"); got != "b" {
			t.Errorf("copied content = %q", got)
		}
	})

	t.Run("copy into read-only", func(t *testing.T) {
		src := mustOpenFile(t, reg, "memory://backup/docs/a.txt")
		err := src.CopyTo(ctx, ro, unifs.CopyAlways)
		if !unifs.IsReadOnly(err) {
			t.Errorf("CopyTo() error = %v, want ErrReadOnly", err)
		}
	})
}

func TestReadOnlyOptions(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(t)
	writeFile(t, reg, "memory://vol/a.txt", "a")
	dir := mustOpenDir(t, reg, "memory://vol")

	t.Run("allow create and delete", func(t *testing.T) {
		ro := unifs.ReadOnlyDirectory(dir, unifs.WithAllowCreateDir(true), unifs.WithAllowDelete(true))
		if err := ro.ChildDirectory("made").Create(ctx); err != nil {
			t.Errorf("Create() error = %v", err)
		}
		if err := ro.ChildFile("a.txt").Delete(ctx); err != nil {
			t.Errorf("Delete() error = %v", err)
		}
		if err := ro.ChildFile("b.txt").Write(ctx, "b"); !unifs.IsReadOnly(err) {
			t.Errorf("Write() error = %v, want ErrReadOnly", err)
		}
	})

	t.Run("custom handler", func(t *testing.T) {
		var attempts []string
		custom := errors.NewPlain("mirror is frozen")
		ro := unifs.ReadOnlyDirectory(dir, unifs.WithWriteAttemptHandler(func(op, path string) error {
			attempts = append(attempts, op+" "+path)
			return custom
		}))

		err := ro.ChildFile("b.txt").Write(ctx, "b")
		if !errors.Is(err, custom) {
			t.Errorf("Write() error = %v, want custom error", err)
		}
		if len(attempts) != 1 || attempts[0] != "write memory://vol/b.txt" {
			t.Errorf("attempts = %v", attempts)
		}
	})

	t.Run("handler can let writes through", func(t *testing.T) {
		ro := unifs.ReadOnlyFile(dir.ChildFile("c.txt"), unifs.WithWriteAttemptHandler(func(string, string) error {
			return nil
		}))
		if err := ro.Write(ctx, "c"); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		if readFile(t, reg, "memory://vol/c.txt") != "c" {
			t.Error("write did not reach the store")
		}
	})
}

func TestReadOnlyProvider(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	rw := unifs.NewRegistry(unifs.WithProviders(memory.NewProvider(store, zerolog.Nop())))
	ro := unifs.NewRegistry(unifs.WithProviders(unifs.ReadOnlyProvider(memory.NewProvider(store, zerolog.Nop()))))

	writeFile(t, rw, "memory://vol/a.txt", "a")

	p, err := ro.Resolve("MEMORY://vol")
	if err != nil || p.Name != "memory" {
		t.Fatalf("Resolve() = %v, %v", p, err)
	}

	f := mustOpenFile(t, ro, "MEMORY://Vol/sub/../a.txt")
	if f.FullName() != "memory://vol/a.txt" {
		t.Errorf("FullName() = %s", f.FullName())
	}
	if got := readFile(t, ro, "memory://vol/a.txt"); got != "a" {
		t.Errorf("Read() = %q", got)
	}
	if err := f.Write(ctx, "b"); !unifs.IsReadOnly(err) {
		t.Errorf("Write() error = %v, want ErrReadOnly", err)
	}

	dir := mustOpenDir(t, ro, "memory://vol")
	if _, ok := dir.(unifs.CanWatch); !ok {
		t.Error("read-only directory should keep watch support")
	}
}
