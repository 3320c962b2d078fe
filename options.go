package unifs

import (
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// DefaultEncoding is used by Read and Write when no encoding is given.
// It is a fixed single-byte encoding so that Length equals the rune count of
// Latin-1 text.
var DefaultEncoding encoding.Encoding = charmap.ISO8859_1

// WriteMode controls how Write opens its target.
type WriteMode int

const (
	// ModeCreate truncates an existing file or creates a new one.
	ModeCreate WriteMode = iota
	// ModeCreateNew creates a new file and fails with ErrExist if it exists.
	ModeCreateNew
	// ModeOpen writes into an existing file from offset zero without truncating.
	// Fails with ErrNotExist if the file is missing.
	ModeOpen
	// ModeOpenOrCreate behaves like ModeOpen but creates a missing file.
	ModeOpenOrCreate
	// ModeTruncate truncates an existing file. Fails with ErrNotExist if missing.
	ModeTruncate
	// ModeAppend appends to the file, creating it if needed.
	ModeAppend
)

func (m WriteMode) String() string {
	switch m {
	case ModeCreate:
		return "create"
	case ModeCreateNew:
		return "create-new"
	case ModeOpen:
		return "open"
	case ModeOpenOrCreate:
		return "open-or-create"
	case ModeTruncate:
		return "truncate"
	case ModeAppend:
		return "append"
	default:
		return "unknown"
	}
}

// ParseWriteMode parses the String form of a WriteMode.
func ParseWriteMode(s string) (WriteMode, error) {
	for m := ModeCreate; m <= ModeAppend; m++ {
		if m.String() == s {
			return m, nil
		}
	}
	return ModeCreate, NewPathError("parse-mode", s, ErrNotSupported)
}

// SearchOption selects how deep enumeration goes.
type SearchOption int

const (
	// SearchTopDirectoryOnly lists immediate children only.
	SearchTopDirectoryOnly SearchOption = iota
	// SearchAllDirectories lists all descendants.
	SearchAllDirectories
)

// CopyOption is the overwrite policy used by CopyTo.
type CopyOption int

const (
	// CopyAlways overwrites existing destination files.
	CopyAlways CopyOption = iota
	// CopySkipExisting leaves existing destination files untouched.
	CopySkipExisting
	// CopyIfNewer overwrites only when the source was modified after the
	// destination. Synthetic timestamps on either side count as newer.
	CopyIfNewer
)

func (o CopyOption) String() string {
	switch o {
	case CopyAlways:
		return "always"
	case CopySkipExisting:
		return "skip-existing"
	case CopyIfNewer:
		return "if-newer"
	default:
		return "unknown"
	}
}

// Option represents a read/write option
type Option func(*Options)

// Options contains all possible options for read and write operations
type Options struct {
	// Mode determines how Write opens the target file
	Mode WriteMode

	// Encoding converts between strings and bytes for Read and Write
	Encoding encoding.Encoding
}

// WithMode sets the write mode
func WithMode(mode WriteMode) Option {
	return func(o *Options) {
		o.Mode = mode
	}
}

// WithEncoding sets the text encoding
func WithEncoding(enc encoding.Encoding) Option {
	return func(o *Options) {
		o.Encoding = enc
	}
}

// ProcessOptions applies options over the defaults.
func ProcessOptions(options ...Option) *Options {
	opts := &Options{
		Mode:     ModeCreate,
		Encoding: DefaultEncoding,
	}
	for _, option := range options {
		option(opts)
	}
	if opts.Encoding == nil {
		opts.Encoding = DefaultEncoding
	}
	return opts
}

// Encode converts s to bytes with the options' encoding.
// Runes the encoding cannot represent are replaced.
func (o *Options) Encode(s string) ([]byte, error) {
	return encoding.ReplaceUnsupported(o.Encoding.NewEncoder()).Bytes([]byte(s))
}

// Decode converts data to a string with the options' encoding.
func (o *Options) Decode(data []byte) (string, error) {
	b, err := o.Encoding.NewDecoder().Bytes(data)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Credentials are passed to backends that authenticate (FTP, HTTP, SFTP).
// Local and resource backends ignore them.
type Credentials struct {
	UserName string
	Password string
	Domain   string
}

// Empty reports whether no user name and no password are set.
func (c *Credentials) Empty() bool {
	return c == nil || (c.UserName == "" && c.Password == "")
}

// HandleOption configures handle construction.
type HandleOption func(*HandleOptions)

// HandleOptions is passed to provider factories.
type HandleOptions struct {
	Credentials *Credentials
}

// WithCredentials attaches credentials to the handle.
func WithCredentials(userName, password, domain string) HandleOption {
	return func(o *HandleOptions) {
		o.Credentials = &Credentials{
			UserName: userName,
			Password: password,
			Domain:   domain,
		}
	}
}

// ProcessHandleOptions applies handle options.
func ProcessHandleOptions(options ...HandleOption) *HandleOptions {
	opts := &HandleOptions{}
	for _, option := range options {
		option(opts)
	}
	return opts
}
