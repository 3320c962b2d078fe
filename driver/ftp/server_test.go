package ftp

import (
	"context"
	"fmt"
	"net"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gobeaver/unifs"
)

// lineServer answers just enough of the FTP protocol to serve one canned
// directory. Listings are sent as raw text so the client library parses them.
type lineServer struct {
	ln    net.Listener
	list  []string
	nlst  []string
	users chan string
}

func startLineServer(t *testing.T) *lineServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := &lineServer{
		ln: ln,
		list: []string{
			"drwxr-xr-x    2 ftp      ftp          4096 Mar 04  2024 .",
			"drwxr-xr-x    3 ftp      ftp          4096 Mar 04  2024 ..",
			"drwxr-xr-x    2 ftp      ftp          4096 Mar 04  2024 docs",
			"-rw-r--r--    1 ftp      ftp            11 Mar 04  2024 readme.txt",
		},
		nlst:  []string{".", "..", "docs", "readme.txt"},
		users: make(chan string, 16),
	}
	t.Cleanup(func() { _ = ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go s.serve(conn)
		}
	}()
	return s
}

func (s *lineServer) url() string {
	return "ftp://" + s.ln.Addr().String() + "/"
}

func (s *lineServer) serve(conn net.Conn) {
	defer conn.Close()
	tc := textproto.NewConn(conn)
	_ = tc.PrintfLine("220 test server ready")

	var data net.Listener
	defer func() {
		if data != nil {
			_ = data.Close()
		}
	}()

	for {
		line, err := tc.ReadLine()
		if err != nil {
			return
		}
		cmd, arg, _ := strings.Cut(line, " ")
		switch strings.ToUpper(cmd) {
		case "USER":
			s.users <- arg
			_ = tc.PrintfLine("331 password required")
		case "PASS":
			_ = tc.PrintfLine("230 logged in")
		case "FEAT":
			_ = tc.PrintfLine("211 no features")
		case "TYPE":
			_ = tc.PrintfLine("200 type set")
		case "EPSV":
			if data != nil {
				_ = data.Close()
			}
			data, err = net.Listen("tcp", "127.0.0.1:0")
			if err != nil {
				_ = tc.PrintfLine("425 cannot open data connection")
				continue
			}
			port := data.Addr().(*net.TCPAddr).Port
			_ = tc.PrintfLine("229 Entering Extended Passive Mode (|||%d|)", port)
		case "LIST":
			s.transfer(tc, data, s.list)
		case "NLST":
			s.transfer(tc, data, s.nlst)
		case "QUIT":
			_ = tc.PrintfLine("221 bye")
			return
		default:
			_ = tc.PrintfLine("502 %s not implemented", cmd)
		}
	}
}

func (s *lineServer) transfer(tc *textproto.Conn, data net.Listener, lines []string) {
	if data == nil {
		_ = tc.PrintfLine("425 use EPSV first")
		return
	}
	conn, err := data.Accept()
	if err != nil {
		_ = tc.PrintfLine("425 cannot open data connection")
		return
	}
	_ = tc.PrintfLine("150 here comes the listing")
	for _, line := range lines {
		_, _ = fmt.Fprintf(conn, "%s\r\n", line)
	}
	_ = conn.Close()
	_ = tc.PrintfLine("226 transfer complete")
}

func TestListingAgainstServer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s := startLineServer(t)
	reg := unifs.NewRegistry()
	require.NoError(t, reg.Register(NewProvider(NewDialer(DialConfig{Timeout: 5 * time.Second}, zerolog.Nop()), zerolog.Nop())))

	root, err := reg.OpenDirectory(s.url())
	require.NoError(t, err)

	files, err := unifs.Collect(root.EnumerateFiles(ctx, "", unifs.SearchTopDirectoryOnly))
	require.NoError(t, err)
	assert.Equal(t, []string{"readme.txt"}, names(files))

	dirs, err := unifs.Collect(root.EnumerateDirectories(ctx, "", unifs.SearchTopDirectoryOnly))
	require.NoError(t, err)
	assert.Equal(t, []string{"docs"}, names(dirs))
	assert.Equal(t, s.url()+"docs", dirs[0].FullName())

	n, err := files[0].Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(11), n)

	assert.Equal(t, "anonymous", <-s.users)
}
