package ftp

import (
	"bytes"
	"context"
	"io"
	"net/textproto"
	"net/url"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/gobeaver/unifs"
)

var listTime = time.Date(2024, 3, 4, 5, 6, 0, 0, time.UTC)

// memServer is an in-memory FTP server reached through memConn. NLST answers
// with full paths and LIST includes "." and "..", like many real servers.
type memServer struct {
	mu    sync.Mutex
	files map[string][]byte
	dirs  map[string]bool
	user  string // required user name, empty allows anonymous
	dials int
	quits int
	// noTimes makes LIST omit timestamps.
	noTimes bool
}

func newMemServer() *memServer {
	return &memServer{files: make(map[string][]byte), dirs: map[string]bool{"/": true}}
}

func (s *memServer) dialer() Dialer {
	return func(_ context.Context, _ *url.URL, creds *unifs.Credentials) (Conn, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.user != "" && (creds.Empty() || creds.UserName != s.user) {
			return nil, translateError(&textproto.Error{Code: ftp.StatusNotLoggedIn, Msg: "Login incorrect."})
		}
		s.dials++
		return &memConn{s: s}, nil
	}
}

func (s *memServer) put(p string, data string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for dir := path.Dir(p); dir != "/"; dir = path.Dir(dir) {
		s.dirs[dir] = true
	}
	s.files[p] = []byte(data)
}

func (s *memServer) get(p string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[p]
	return string(data), ok
}

func (s *memServer) hasDir(p string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirs[p]
}

func (s *memServer) counts() (dials, quits int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dials, s.quits
}

type memConn struct {
	s *memServer
}

func unavailable(p string) error {
	return &textproto.Error{Code: ftp.StatusFileUnavailable, Msg: p + ": No such file or directory"}
}

// children returns the direct children of dir, sorted.
func (c *memConn) children(dir string) (files, dirs []string) {
	for p := range c.s.files {
		if path.Dir(p) == dir {
			files = append(files, path.Base(p))
		}
	}
	for p := range c.s.dirs {
		if p != "/" && path.Dir(p) == dir {
			dirs = append(dirs, path.Base(p))
		}
	}
	sort.Strings(files)
	sort.Strings(dirs)
	return files, dirs
}

func (c *memConn) NameList(p string) ([]string, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if !c.s.dirs[p] {
		return nil, unavailable(p)
	}
	files, dirs := c.children(p)
	var names []string
	for _, name := range append(files, dirs...) {
		names = append(names, strings.TrimPrefix(path.Join(p, name), "/"))
	}
	return names, nil
}

func (c *memConn) List(p string) ([]*ftp.Entry, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if !c.s.dirs[p] {
		return nil, unavailable(p)
	}
	t := listTime
	if c.s.noTimes {
		t = time.Time{}
	}
	entries := []*ftp.Entry{
		{Name: ".", Type: ftp.EntryTypeFolder, Time: t},
		{Name: "..", Type: ftp.EntryTypeFolder, Time: t},
	}
	files, dirs := c.children(p)
	for _, name := range dirs {
		entries = append(entries, &ftp.Entry{Name: name, Type: ftp.EntryTypeFolder, Size: 4096, Time: t})
	}
	for _, name := range files {
		entries = append(entries, &ftp.Entry{Name: name, Type: ftp.EntryTypeFile, Size: uint64(len(c.s.files[path.Join(p, name)])), Time: t})
	}
	return entries, nil
}

func (c *memConn) Retr(p string) (io.ReadCloser, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	data, ok := c.s.files[p]
	if !ok {
		return nil, unavailable(p)
	}
	return io.NopCloser(bytes.NewReader(append([]byte{}, data...))), nil
}

func (c *memConn) Stor(p string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if !c.s.dirs[path.Dir(p)] || c.s.dirs[p] {
		return unavailable(p)
	}
	c.s.files[p] = data
	return nil
}

func (c *memConn) Append(p string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if !c.s.dirs[path.Dir(p)] {
		return unavailable(p)
	}
	c.s.files[p] = append(c.s.files[p], data...)
	return nil
}

func (c *memConn) Delete(p string) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if _, ok := c.s.files[p]; !ok {
		return unavailable(p)
	}
	delete(c.s.files, p)
	return nil
}

func (c *memConn) Rename(from, to string) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if !c.s.dirs[path.Dir(to)] {
		return unavailable(to)
	}
	if data, ok := c.s.files[from]; ok {
		delete(c.s.files, from)
		c.s.files[to] = data
		return nil
	}
	if !c.s.dirs[from] {
		return unavailable(from)
	}
	prefix := from + "/"
	var movedFiles, movedDirs []string
	for p := range c.s.files {
		if strings.HasPrefix(p, prefix) {
			movedFiles = append(movedFiles, p)
		}
	}
	for p := range c.s.dirs {
		if p == from || strings.HasPrefix(p, prefix) {
			movedDirs = append(movedDirs, p)
		}
	}
	for _, p := range movedFiles {
		data := c.s.files[p]
		delete(c.s.files, p)
		c.s.files[to+strings.TrimPrefix(p, from)] = data
	}
	for _, p := range movedDirs {
		delete(c.s.dirs, p)
		c.s.dirs[to+strings.TrimPrefix(p, from)] = true
	}
	return nil
}

func (c *memConn) MakeDir(p string) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if !c.s.dirs[path.Dir(p)] || c.s.dirs[p] {
		return unavailable(p)
	}
	c.s.dirs[p] = true
	return nil
}

func (c *memConn) RemoveDir(p string) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if !c.s.dirs[p] {
		return unavailable(p)
	}
	files, dirs := c.children(p)
	if len(files) > 0 || len(dirs) > 0 {
		return &textproto.Error{Code: ftp.StatusFileUnavailable, Msg: "Directory not empty"}
	}
	delete(c.s.dirs, p)
	return nil
}

func (c *memConn) Quit() error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	c.s.quits++
	return nil
}
