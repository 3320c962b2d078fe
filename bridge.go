package unifs

import (
	"context"
	"strings"

	"emperror.dev/errors"
)

// ============================================================================
// Cross-Backend Operations
// ============================================================================
//
// The functions below move bytes between any two backends by reading the
// whole source into memory and writing it through the target's own handles.
// None of them is transactional: if a tree copy fails halfway the destination
// keeps what was already copied, and if a move fails after some children were
// deleted those deletions are not undone. Callers must treat the destination
// as possibly partial after any error.

// CopyFile copies src into target, naming the copy src.Name().
func CopyFile(ctx context.Context, src File, target Directory, opt CopyOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dst := target.ChildFile(src.Name())

	write, err := ShouldCopy(ctx, src, dst, opt)
	if err != nil {
		return NewPathError("copy", src.FullName(), err)
	}
	if !write {
		return nil
	}

	data, err := src.ReadBinary(ctx)
	if err != nil {
		return NewPathError("copy", src.FullName(), err)
	}

	if err := target.Create(ctx); err != nil {
		return NewPathError("copy", target.FullName(), err)
	}
	if err := dst.WriteBinary(ctx, data, WithMode(ModeCreate)); err != nil {
		return NewPathError("copy", dst.FullName(), err)
	}
	return nil
}

// CopyDirectory copies src and all of its descendants into target as
// target/src.Name(). Children are listed before the destination is created,
// and a destination that lies inside src is never copied into itself, so
// copying a directory into itself terminates.
func CopyDirectory(ctx context.Context, src Directory, target Directory, opt CopyOption) error {
	dst := target.ChildDirectory(src.Name())
	return copyTree(ctx, src, dst, dst.FullName(), opt, false)
}

// copyTree copies the content of src into dst. With verify set every copied
// file and directory must exist afterwards.
func copyTree(ctx context.Context, src, dst Directory, guard string, opt CopyOption, verify bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	files, err := Collect(src.EnumerateFiles(ctx, "", SearchTopDirectoryOnly))
	if err != nil {
		return NewPathError("copy", src.FullName(), err)
	}
	dirs, err := Collect(src.EnumerateDirectories(ctx, "", SearchTopDirectoryOnly))
	if err != nil {
		return NewPathError("copy", src.FullName(), err)
	}

	if err := dst.Create(ctx); err != nil {
		return NewPathError("copy", dst.FullName(), err)
	}
	if verify {
		if err := landed(ctx, dst); err != nil {
			return err
		}
	}

	for _, f := range files {
		if err := CopyFile(ctx, f, dst, opt); err != nil {
			return err
		}
		if verify {
			if err := landed(ctx, dst.ChildFile(f.Name())); err != nil {
				return err
			}
		}
	}
	for _, d := range dirs {
		if SamePath(d.FullName(), guard) {
			continue
		}
		if err := copyTree(ctx, d, dst.ChildDirectory(d.Name()), guard, opt, verify); err != nil {
			return err
		}
	}
	return nil
}

// MoveFile copies src into target and deletes src. Moving a missing file or
// moving a file onto itself is a no-op. The source is only deleted once the
// copy exists in target; a target that silently discards writes, such as a
// resource directory, yields ErrNotSupported and the source is kept.
func MoveFile(ctx context.Context, src File, target Directory) error {
	exists, err := src.Exists(ctx)
	if err != nil {
		return NewPathError("move", src.FullName(), err)
	}
	if !exists || SamePath(target.ChildFile(src.Name()).FullName(), src.FullName()) {
		return nil
	}

	if err := CopyFile(ctx, src, target, CopyAlways); err != nil {
		return NewPathError("move", src.FullName(), err)
	}
	if err := landed(ctx, target.ChildFile(src.Name())); err != nil {
		return NewPathError("move", src.FullName(), err)
	}
	if err := src.Delete(ctx); err != nil {
		return NewPathError("move", src.FullName(), errors.Wrap(err, "delete source after copy"))
	}
	return nil
}

// MoveDirectory copies src into target and deletes the source tree.
// Moving a missing directory or moving a directory onto itself is a no-op.
// Moving a directory into its own subtree is rejected. Like MoveFile, the
// source is kept when any copied entry is missing from the target.
func MoveDirectory(ctx context.Context, src Directory, target Directory) error {
	exists, err := src.Exists(ctx)
	if err != nil {
		return NewPathError("move", src.FullName(), err)
	}
	dst := target.ChildDirectory(src.Name())
	if !exists || SamePath(dst.FullName(), src.FullName()) {
		return nil
	}
	if IsWithin(dst.FullName(), src.FullName()) {
		return NewPathError("move", src.FullName(), ErrInvalidPath)
	}

	if err := copyTree(ctx, src, dst, dst.FullName(), CopyAlways, true); err != nil {
		return NewPathError("move", src.FullName(), err)
	}
	if err := src.Delete(ctx); err != nil {
		return NewPathError("move", src.FullName(), errors.Wrap(err, "delete source after copy"))
	}
	return nil
}

// landed returns ErrNotSupported when a write reported success but its
// result is not there.
func landed(ctx context.Context, dst interface {
	Exists(context.Context) (bool, error)
	FullName() string
}) error {
	exists, err := dst.Exists(ctx)
	if err != nil {
		return NewPathError("copy", dst.FullName(), err)
	}
	if !exists {
		return NewPathError("copy", dst.FullName(), errors.Wrap(ErrNotSupported, "target discarded the write"))
	}
	return nil
}

// DeleteTree deletes every file and subdirectory of dir through the contract,
// deepest first. It does not delete dir itself. Backends without a native
// recursive delete call this before removing the directory.
func DeleteTree(ctx context.Context, dir Directory) error {
	files, err := Collect(dir.EnumerateFiles(ctx, "", SearchTopDirectoryOnly))
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := f.Delete(ctx); err != nil {
			return err
		}
	}

	dirs, err := Collect(dir.EnumerateDirectories(ctx, "", SearchTopDirectoryOnly))
	if err != nil {
		return err
	}
	for _, d := range dirs {
		if err := d.Delete(ctx); err != nil {
			return err
		}
	}
	return nil
}

// ShouldCopy applies the overwrite policy opt to a copy of src onto dst.
// Backends with a native copy call it before copying.
func ShouldCopy(ctx context.Context, src, dst File, opt CopyOption) (bool, error) {
	if opt == CopyAlways {
		return true, nil
	}

	exists, err := dst.Exists(ctx)
	if err != nil {
		return false, err
	}
	if !exists {
		return true, nil
	}
	if opt == CopySkipExisting {
		return false, nil
	}

	srcInfo, err := src.Stat(ctx)
	if err != nil {
		return false, err
	}
	dstInfo, err := dst.Stat(ctx)
	if err != nil {
		return false, err
	}
	if srcInfo.Synthetic || dstInfo.Synthetic {
		return true, nil
	}
	return srcInfo.Modified.After(dstInfo.Modified), nil
}

// SamePath compares two full names ignoring trailing separators.
func SamePath(a, b string) bool {
	return trimSeparators(a) == trimSeparators(b)
}

// IsWithin reports whether child lies strictly below parent.
func IsWithin(child, parent string) bool {
	child, parent = trimSeparators(child), trimSeparators(parent)
	if len(child) <= len(parent) || !strings.HasPrefix(child, parent) {
		return false
	}
	sep := child[len(parent)]
	return sep == '/' || sep == '\\'
}

func trimSeparators(p string) string {
	trimmed := strings.TrimRight(p, `/\`)
	if trimmed == "" || strings.HasSuffix(trimmed, ":") {
		return p
	}
	return trimmed
}
