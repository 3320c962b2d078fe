package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"emperror.dev/errors"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/gobeaver/unifs"
)

type registryFunc func(options ...unifs.RegistryOption) (*unifs.Registry, error)

type app struct {
	newRegistry registryFunc
	reg         *unifs.Registry

	user     string
	password string
	domain   string
	readOnly bool
}

func newRootCmd(newRegistry registryFunc) *cobra.Command {
	a := &app{newRegistry: newRegistry}

	root := &cobra.Command{
		Use:           "unifs",
		Short:         "Work with files on local, ftp, http, sftp and resource paths",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.newRegistry()
			if err != nil {
				return errors.Wrap(err, "failed to build registry")
			}
			if a.readOnly {
				reg = readOnlyRegistry(reg)
			}
			a.reg = reg
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&a.user, "user", "u", "", "user name for ftp, http and sftp")
	root.PersistentFlags().StringVarP(&a.password, "password", "p", "", "password for ftp, http and sftp")
	root.PersistentFlags().StringVar(&a.domain, "domain", "", "domain sent with http credentials")
	root.PersistentFlags().BoolVar(&a.readOnly, "read-only", false, "refuse every command that would modify a path")

	root.AddCommand(
		a.lsCmd(),
		a.catCmd(),
		a.putCmd(),
		a.cpCmd(),
		a.mvCmd(),
		a.rmCmd(),
		a.mkdirCmd(),
		a.statCmd(),
		a.sumCmd(),
	)
	return root
}

// readOnlyRegistry rebuilds reg with every provider wrapped read-only,
// keeping their order and the registry's logger.
func readOnlyRegistry(reg *unifs.Registry) *unifs.Registry {
	providers := reg.Providers()
	for i, p := range providers {
		providers[i] = unifs.ReadOnlyProvider(p)
	}
	return unifs.NewRegistry(
		unifs.WithLogger(reg.Logger()),
		unifs.WithProviders(providers...),
	)
}

func (a *app) handleOptions() []unifs.HandleOption {
	if a.user == "" && a.password == "" {
		return nil
	}
	return []unifs.HandleOption{unifs.WithCredentials(a.user, a.password, a.domain)}
}

func (a *app) dir(path string) (unifs.Directory, error) {
	return a.reg.OpenDirectory(path, a.handleOptions()...)
}

func (a *app) file(path string) (unifs.File, error) {
	return a.reg.OpenFile(path, a.handleOptions()...)
}

// entry opens path as a file when one exists there and as a directory
// otherwise.
func (a *app) entry(ctx context.Context, path string) (unifs.Entry, error) {
	f, err := a.file(path)
	if err != nil {
		return nil, err
	}
	exists, err := f.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if exists {
		return f, nil
	}

	d, err := a.dir(path)
	if err != nil {
		return nil, err
	}
	exists, err = d.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, unifs.NewPathError("open", path, unifs.ErrNotExist)
	}
	return d, nil
}

func (a *app) lsCmd() *cobra.Command {
	var (
		pattern   string
		recursive bool
	)
	cmd := &cobra.Command{
		Use:     "ls <directory>",
		Short:   "list directories and files",
		Example: "unifs ls ftp://mirror.example.com/pub --pattern '*.txt'",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := a.dir(args[0])
			if err != nil {
				return err
			}
			opt := unifs.SearchTopDirectoryOnly
			if recursive {
				opt = unifs.SearchAllDirectories
			}

			out := cmd.OutOrStdout()
			for sub, err := range d.EnumerateDirectories(ctx, pattern, opt) {
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%10s  %s/\n", "-", sub.FullName())
			}
			for f, err := range d.EnumerateFiles(ctx, pattern, opt) {
				if err != nil {
					return err
				}
				size := "?"
				if info, err := f.Stat(ctx); err == nil && !info.Synthetic {
					size = humanize.Bytes(uint64(info.Size))
				}
				fmt.Fprintf(out, "%10s  %s\n", size, f.FullName())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&pattern, "pattern", "", "glob matched against entry names")
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "descend into subdirectories")
	return cmd
}

// parseEncoding accepts any WHATWG encoding label. Empty means the library
// default.
func parseEncoding(name string) (encoding.Encoding, error) {
	if name == "" {
		return unifs.DefaultEncoding, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, errors.Wrapf(err, "unknown encoding %q", name)
	}
	return enc, nil
}

func (a *app) catCmd() *cobra.Command {
	var enc string
	cmd := &cobra.Command{
		Use:   "cat <file>",
		Short: "print a file as text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := parseEncoding(enc)
			if err != nil {
				return err
			}
			f, err := a.file(args[0])
			if err != nil {
				return err
			}
			text, err := f.Read(cmd.Context(), unifs.WithEncoding(e))
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), text)
			return err
		},
	}
	cmd.Flags().StringVar(&enc, "encoding", "", "text encoding, default iso-8859-1")
	return cmd
}

func (a *app) putCmd() *cobra.Command {
	var (
		enc  string
		mode string
	)
	cmd := &cobra.Command{
		Use:   "put <file> [text]",
		Short: "write text to a file, reading stdin when no text is given",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := parseEncoding(enc)
			if err != nil {
				return err
			}
			m, err := unifs.ParseWriteMode(mode)
			if err != nil {
				return err
			}

			var text string
			if len(args) == 2 {
				text = args[1]
			} else {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return errors.Wrap(err, "failed to read stdin")
				}
				text = string(data)
			}

			f, err := a.file(args[0])
			if err != nil {
				return err
			}
			return f.Write(cmd.Context(), text, unifs.WithEncoding(e), unifs.WithMode(m))
		},
	}
	cmd.Flags().StringVar(&enc, "encoding", "", "text encoding, default iso-8859-1")
	cmd.Flags().StringVar(&mode, "mode", unifs.ModeCreate.String(),
		"create, create-new, open, open-or-create, truncate or append")
	return cmd
}

func parseCopyOption(skipExisting, ifNewer bool) (unifs.CopyOption, error) {
	switch {
	case skipExisting && ifNewer:
		return unifs.CopyAlways, errors.New("--skip-existing and --if-newer are exclusive")
	case skipExisting:
		return unifs.CopySkipExisting, nil
	case ifNewer:
		return unifs.CopyIfNewer, nil
	default:
		return unifs.CopyAlways, nil
	}
}

func (a *app) cpCmd() *cobra.Command {
	var skipExisting, ifNewer bool
	cmd := &cobra.Command{
		Use:     "cp <source> <target directory>",
		Short:   "copy a file or directory tree into a directory",
		Example: "unifs cp resource://app/templates /tmp/out --if-newer",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opt, err := parseCopyOption(skipExisting, ifNewer)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			src, err := a.entry(ctx, args[0])
			if err != nil {
				return err
			}
			target, err := a.dir(args[1])
			if err != nil {
				return err
			}
			return src.CopyTo(ctx, target, opt)
		},
	}
	cmd.Flags().BoolVar(&skipExisting, "skip-existing", false, "keep files that already exist in the target")
	cmd.Flags().BoolVar(&ifNewer, "if-newer", false, "overwrite only when the source is newer")
	return cmd
}

func (a *app) mvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mv <source> <target directory>",
		Short: "move a file or directory tree into a directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			src, err := a.entry(ctx, args[0])
			if err != nil {
				return err
			}
			target, err := a.dir(args[1])
			if err != nil {
				return err
			}
			return src.MoveTo(ctx, target)
		},
	}
}

func (a *app) rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <path>",
		Short: "delete a file or a directory with everything below it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := a.entry(ctx, args[0])
			if unifs.IsNotExist(err) {
				return nil
			}
			if err != nil {
				return err
			}
			return e.Delete(ctx)
		},
	}
}

func (a *app) mkdirCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mkdir <directory>",
		Short: "create a directory and any missing parents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.dir(args[0])
			if err != nil {
				return err
			}
			return d.Create(cmd.Context())
		},
	}
}

func (a *app) statCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stat <path>",
		Short: "show metadata of a file or directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := a.entry(ctx, args[0])
			if err != nil {
				return err
			}
			info, err := e.Stat(ctx)
			if err != nil {
				return err
			}

			kind := "file"
			if info.IsDir {
				kind = "directory"
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "name:      %s\n", info.Name)
			fmt.Fprintf(out, "path:      %s\n", info.FullName)
			fmt.Fprintf(out, "type:      %s\n", kind)
			if !info.IsDir {
				fmt.Fprintf(out, "content:   %s\n", unifs.GuessContentType(info.Name, nil))
			}
			fmt.Fprintf(out, "size:      %s (%d bytes)\n", humanize.Bytes(uint64(info.Size)), info.Size)
			fmt.Fprintf(out, "created:   %s\n", info.Created.Format("2006-01-02 15:04:05Z"))
			fmt.Fprintf(out, "modified:  %s (%s)\n", info.Modified.Format("2006-01-02 15:04:05Z"), humanize.Time(info.Modified))
			fmt.Fprintf(out, "accessed:  %s\n", info.Accessed.Format("2006-01-02 15:04:05Z"))
			if info.Synthetic {
				fmt.Fprintln(out, "note:      metadata not provided by the backend")
			}
			return nil
		},
	}
}

func (a *app) sumCmd() *cobra.Command {
	var (
		alg    string
		verify string
	)
	cmd := &cobra.Command{
		Use:   "sum <file>",
		Short: "print or verify the checksum of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			f, err := a.file(args[0])
			if err != nil {
				return err
			}
			algorithm := unifs.ChecksumAlgorithm(strings.ToLower(alg))

			if verify != "" {
				ok, err := unifs.VerifyChecksum(ctx, f, verify, algorithm)
				if err != nil {
					return err
				}
				if !ok {
					return errors.Errorf("checksum mismatch for %s", f.FullName())
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: OK\n", f.FullName())
				return nil
			}

			sum, err := unifs.Checksum(ctx, f, algorithm)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", sum, f.FullName())
			return nil
		},
	}
	var names []string
	for _, a := range unifs.ChecksumAlgorithms() {
		names = append(names, string(a))
	}
	cmd.Flags().StringVar(&alg, "alg", string(unifs.ChecksumSHA256), "one of "+strings.Join(names, ", "))
	cmd.Flags().StringVar(&verify, "verify", "", "expected checksum; fail when it does not match")
	return cmd
}
