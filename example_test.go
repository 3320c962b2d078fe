package unifs_test

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/gobeaver/unifs"
	"github.com/gobeaver/unifs/driver/memory"
)

func ExampleRegistry() {
	ctx := context.Background()

	reg := unifs.NewRegistry()
	_ = reg.Register(memory.NewProvider(memory.New(), zerolog.Nop()))

	// Paths are dispatched by scheme and normalized before use
	f, _ := reg.OpenFile(`MEMORY://Cache\reports\..\today.txt`)
	_ = f.Write(ctx, "all green")

	text, _ := f.Read(ctx)
	fmt.Println(f.FullName())
	fmt.Println(text)
	// Output:
	// memory://cache/today.txt
	// all green
}

func ExampleCopyDirectory() {
	ctx := context.Background()

	reg := unifs.NewRegistry(unifs.WithProviders(memory.NewProvider(memory.New(), zerolog.Nop())))
	src, _ := reg.OpenDirectory("memory://source/data")
	_ = src.ChildFile("a.txt").Write(ctx, "a")
	_ = src.ChildDirectory("nested").ChildFile("b.txt").Write(ctx, "b")

	backup, _ := reg.OpenDirectory("memory://backup")
	if err := unifs.CopyDirectory(ctx, src, backup, unifs.CopySkipExisting); err != nil {
		fmt.Println("Error:", err)
		return
	}

	for f, err := range backup.EnumerateFiles(ctx, "*.txt", unifs.SearchAllDirectories) {
		if err != nil {
			fmt.Println("Error:", err)
			return
		}
		fmt.Println(f.FullName())
	}
	// Output:
	// memory://backup/data/a.txt
	// memory://backup/data/nested/b.txt
}

func ExampleIsNotExist() {
	ctx := context.Background()

	reg := unifs.NewRegistry(unifs.WithProviders(memory.NewProvider(memory.New(), zerolog.Nop())))
	f, _ := reg.OpenFile("memory://vol/missing.txt")

	_, err := f.Read(ctx)
	if unifs.IsNotExist(err) {
		fmt.Println("file not found")
	}

	_, err = reg.OpenFile("gopher://example.com/")
	if unifs.IsProviderNotFound(err) {
		fmt.Println("no provider")
	}
	// Output:
	// file not found
	// no provider
}

func ExampleWithMode() {
	ctx := context.Background()

	reg := unifs.NewRegistry(unifs.WithProviders(memory.NewProvider(memory.New(), zerolog.Nop())))
	f, _ := reg.OpenFile("memory://vol/app.log")

	_ = f.Write(ctx, "started\n", unifs.WithMode(unifs.ModeAppend))
	_ = f.Write(ctx, "stopped\n", unifs.WithMode(unifs.ModeAppend))

	err := f.Write(ctx, "", unifs.WithMode(unifs.ModeCreateNew))
	fmt.Println(unifs.IsExist(err))

	text, _ := f.Read(ctx)
	fmt.Print(text)
	// Output:
	// true
	// started
	// stopped
}

func ExampleChecksum() {
	ctx := context.Background()

	reg := unifs.NewRegistry(unifs.WithProviders(memory.NewProvider(memory.New(), zerolog.Nop())))
	f, _ := reg.OpenFile("memory://vol/hello.txt")
	_ = f.Write(ctx, "hello")

	sum, _ := unifs.Checksum(ctx, f, unifs.ChecksumSHA256)
	fmt.Println(sum)
	// Output:
	// 2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824
}

func ExampleCanWatch() {
	ctx := context.Background()

	reg := unifs.NewRegistry(unifs.WithProviders(memory.NewProvider(memory.New(), zerolog.Nop())))
	dir, _ := reg.OpenDirectory("memory://config")

	w, ok := dir.(unifs.CanWatch)
	if !ok {
		return
	}
	token, _ := w.Watch(ctx, "*.json")

	changed := make(chan struct{})
	token.RegisterChangeCallback(func() { close(changed) })

	_ = dir.ChildFile("notes.txt").Write(ctx, "ignored")
	_ = dir.ChildFile("app.json").Write(ctx, `{"debug":true}`)
	<-changed

	fmt.Println("config changed:", token.HasChanged())
	// Output:
	// config changed: true
}
