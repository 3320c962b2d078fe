package ftp

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/textproto"
	"net/url"
	"time"

	"emperror.dev/errors"
	"github.com/jlaffaye/ftp"
	"github.com/rs/zerolog"

	"github.com/gobeaver/unifs"
)

// Conn is the subset of FTP commands the driver uses. *ftp.ServerConn
// satisfies it through serverConn.
type Conn interface {
	NameList(path string) ([]string, error)
	List(path string) ([]*ftp.Entry, error)
	Retr(path string) (io.ReadCloser, error)
	Stor(path string, r io.Reader) error
	Append(path string, r io.Reader) error
	Delete(path string) error
	Rename(from, to string) error
	MakeDir(path string) error
	RemoveDir(path string) error
	Quit() error
}

// Dialer opens a logged-in connection to the server named by u.
type Dialer func(ctx context.Context, u *url.URL, creds *unifs.Credentials) (Conn, error)

// DialConfig configures the default dialer.
type DialConfig struct {
	Timeout       time.Duration
	ImplicitTLS   bool // ftps:// on port 990 instead of AUTH TLS
	TLSSkipVerify bool
}

type serverConn struct {
	*ftp.ServerConn
}

func (c serverConn) Retr(path string) (io.ReadCloser, error) {
	return c.ServerConn.Retr(path)
}

// NewDialer returns a Dialer backed by github.com/jlaffaye/ftp. ftps://
// uses explicit TLS unless cfg.ImplicitTLS is set. Without credentials the
// anonymous account is used.
func NewDialer(cfg DialConfig, logger zerolog.Logger) Dialer {
	return func(ctx context.Context, u *url.URL, creds *unifs.Credentials) (Conn, error) {
		secure := u.Scheme == "ftps"
		addr := u.Host
		if u.Port() == "" {
			port := "21"
			if secure && cfg.ImplicitTLS {
				port = "990"
			}
			addr = net.JoinHostPort(u.Hostname(), port)
		}

		options := []ftp.DialOption{ftp.DialWithContext(ctx)}
		if cfg.Timeout > 0 {
			options = append(options, ftp.DialWithTimeout(cfg.Timeout))
		}
		if secure {
			tlsConfig := &tls.Config{
				ServerName:         u.Hostname(),
				InsecureSkipVerify: cfg.TLSSkipVerify, //nolint:gosec // opt-in through config
			}
			if cfg.ImplicitTLS {
				options = append(options, ftp.DialWithTLS(tlsConfig))
			} else {
				options = append(options, ftp.DialWithExplicitTLS(tlsConfig))
			}
		}

		logger.Debug().Str("addr", addr).Bool("tls", secure).Msg("dialing ftp")
		c, err := ftp.Dial(addr, options...)
		if err != nil {
			return nil, errors.Wrapf(err, "dial %s", addr)
		}

		user, pass := "anonymous", "anonymous"
		if !creds.Empty() {
			user, pass = creds.UserName, creds.Password
		}
		if err := c.Login(user, pass); err != nil {
			_ = c.Quit()
			return nil, translateError(err)
		}
		return serverConn{c}, nil
	}
}

// translateError maps FTP reply codes onto the unifs sentinels.
func translateError(err error) error {
	var protoErr *textproto.Error
	if !errors.As(err, &protoErr) {
		return err
	}
	switch protoErr.Code {
	case ftp.StatusFileUnavailable, ftp.StatusFileActionIgnored:
		return errors.WithMessage(unifs.ErrNotExist, protoErr.Error())
	case ftp.StatusNotLoggedIn:
		return errors.WithMessage(unifs.ErrPermission, protoErr.Error())
	case ftp.StatusBadFileName:
		return errors.WithMessage(unifs.ErrInvalidName, protoErr.Error())
	default:
		return err
	}
}

func isNotFound(err error) bool {
	var protoErr *textproto.Error
	return errors.As(err, &protoErr) &&
		(protoErr.Code == ftp.StatusFileUnavailable || protoErr.Code == ftp.StatusFileActionIgnored)
}
