package sftp

import (
	"context"
	"io"
	"io/fs"
	"net"
	"net/url"
	"os"
	"time"

	"emperror.dev/errors"
	"github.com/pkg/sftp"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/gobeaver/unifs"
)

// Dialer opens an SFTP session to the server named by u. The returned closer,
// when not nil, is closed after the client.
type Dialer func(ctx context.Context, u *url.URL, creds *unifs.Credentials) (*sftp.Client, io.Closer, error)

// DialConfig configures the default dialer.
type DialConfig struct {
	Timeout time.Duration
	// PrivateKey is a PEM encoded key tried before the password.
	PrivateKey []byte
	// KnownHosts is the path of a known_hosts file. Empty disables host key
	// checking.
	KnownHosts string
}

// LoadDialConfig reads the key and known_hosts settings from cfg.
func LoadDialConfig(cfg *unifs.Config) (DialConfig, error) {
	timeout, err := cfg.Duration("sftp")
	if err != nil {
		return DialConfig{}, err
	}
	dc := DialConfig{Timeout: timeout, KnownHosts: cfg.SFTPKnownHosts}
	if cfg.SFTPPrivateKey != "" {
		key, err := os.ReadFile(cfg.SFTPPrivateKey)
		if err != nil {
			return DialConfig{}, errors.Wrap(err, "failed to read private key")
		}
		dc.PrivateKey = key
	}
	return dc, nil
}

// NewDialer returns a Dialer that opens one SSH connection per call.
func NewDialer(cfg DialConfig, logger zerolog.Logger) (Dialer, error) {
	hostKey := ssh.InsecureIgnoreHostKey() //nolint:gosec // opt-in through config
	if cfg.KnownHosts != "" {
		cb, err := knownhosts.New(cfg.KnownHosts)
		if err != nil {
			return nil, errors.Wrap(err, "failed to load known hosts")
		}
		hostKey = cb
	}

	var signer ssh.Signer
	if len(cfg.PrivateKey) > 0 {
		s, err := ssh.ParsePrivateKey(cfg.PrivateKey)
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse private key")
		}
		signer = s
	}

	return func(ctx context.Context, u *url.URL, creds *unifs.Credentials) (*sftp.Client, io.Closer, error) {
		sshConfig := &ssh.ClientConfig{
			HostKeyCallback: hostKey,
			Timeout:         cfg.Timeout,
		}
		if creds != nil {
			sshConfig.User = creds.UserName
		}
		if signer != nil {
			sshConfig.Auth = append(sshConfig.Auth, ssh.PublicKeys(signer))
		}
		if creds != nil && creds.Password != "" {
			sshConfig.Auth = append(sshConfig.Auth, ssh.Password(creds.Password))
		}
		if len(sshConfig.Auth) == 0 {
			return nil, nil, errors.WithMessage(unifs.ErrPermission, "no authentication method provided")
		}

		addr := u.Host
		if u.Port() == "" {
			addr = net.JoinHostPort(u.Hostname(), "22")
		}
		logger.Debug().Str("addr", addr).Str("user", sshConfig.User).Msg("dialing sftp")

		dialer := net.Dialer{Timeout: cfg.Timeout}
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "dial %s", addr)
		}
		c, chans, reqs, err := ssh.NewClientConn(conn, addr, sshConfig)
		if err != nil {
			_ = conn.Close()
			return nil, nil, errors.WithMessage(unifs.ErrPermission, err.Error())
		}
		sshClient := ssh.NewClient(c, chans, reqs)

		client, err := sftp.NewClient(sshClient)
		if err != nil {
			_ = sshClient.Close()
			return nil, nil, errors.Wrap(err, "failed to start sftp subsystem")
		}
		return client, sshClient, nil
	}, nil
}

// translateError maps SFTP status codes onto the unifs sentinels.
func translateError(err error) error {
	var status *sftp.StatusError
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return errors.WithMessage(unifs.ErrNotExist, err.Error())
	case errors.Is(err, fs.ErrPermission):
		return errors.WithMessage(unifs.ErrPermission, err.Error())
	case errors.Is(err, fs.ErrExist):
		return errors.WithMessage(unifs.ErrExist, err.Error())
	case errors.As(err, &status) && status.FxCode() == sftp.ErrSSHFxNoSuchFile:
		return errors.WithMessage(unifs.ErrNotExist, err.Error())
	case errors.As(err, &status) && status.FxCode() == sftp.ErrSSHFxPermissionDenied:
		return errors.WithMessage(unifs.ErrPermission, err.Error())
	default:
		return err
	}
}

func isNotExist(err error) bool {
	return errors.Is(translateError(err), unifs.ErrNotExist)
}
