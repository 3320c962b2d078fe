// Package unifs provides one file and directory model over local disk, FTP,
// HTTP, SFTP, embedded read-only resources and an in-process memory store.
// The backend is picked from the path string, so code that copies "~/reports"
// to "ftp://host/archive" does not need to know either backend.
//
// # Paths and providers
//
// A [Registry] holds [Provider] values in priority order. Each provider owns
// a family of paths:
//
//   - "/var/data", "C:\data" (local, driver/local)
//   - "~/data", "./data", "../data" (local-relative, driver/local)
//   - "ftp://host/dir", "ftps://host/dir" (driver/ftp)
//   - "http://host/file", "https://host/file" (driver/http)
//   - "sftp://host/dir" (driver/sftp)
//   - "resource://assembly/folder/name" (driver/resource)
//   - "memory://volume/dir" (driver/memory)
//
// The first registered provider whose Match accepts the path wins. Drivers
// register a factory from init, so importing a driver package is enough:
//
//	import (
//	    "github.com/gobeaver/unifs"
//	    _ "github.com/gobeaver/unifs/driver/ftp"
//	    _ "github.com/gobeaver/unifs/driver/local"
//	)
//
//	src, err := unifs.Dir("~/reports")
//	dst, err := unifs.Dir("ftp://backup.example.com/reports", unifs.WithCredentials("user", "secret", ""))
//	err = src.CopyTo(ctx, dst, unifs.CopyIfNewer)
//
// Registries can also be assembled by hand with [NewRegistry] and the
// drivers' NewProvider constructors.
//
// # Handles
//
// [Directory] and [File] handles hold a path, not a connection. Every method
// opens what it needs and releases it before returning. Enumeration is lazy
// and returns an iter.Seq2:
//
//	for f, err := range dir.EnumerateFiles(ctx, "*.csv", unifs.SearchAllDirectories) {
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(f.FullName())
//	}
//
// Text is read and written through golang.org/x/text encodings. The default
// is ISO-8859-1; pass [WithEncoding] to change it.
//
// # Copying between backends
//
// CopyTo and MoveTo accept a target on any backend. Backends use a native
// operation when source and target share it (a local rename) and fall back to
// [CopyFile] and [CopyDirectory], which read each file fully and write it
// through the target. These operations are not transactional.
//
// # Metadata
//
// Backends that cannot report sizes or times (HTTP without headers, FTP
// servers without a detail listing) return placeholder values with
// [FileInfo].Synthetic set.
//
// # Read-only views
//
// [ReadOnlyDirectory], [ReadOnlyFile] and [ReadOnlyProvider] wrap handles so
// that every write fails with [ErrReadOnly] while reads and copies out keep
// working.
//
// # Configuration
//
// [GetConfig] reads BEAVER_UNIFS_* environment variables. [New] builds a registry
// from a config and the registered drivers; [Default] does the same once for
// the whole process.
package unifs
