package ftp

import (
	"path"
	"strings"

	"github.com/jlaffaye/ftp"
)

// classify correlates a name listing (NLST) with a detail listing (LIST) and
// splits the names into files and directories. The detail listing decides the
// type; names it does not describe are treated as plain files with unknown
// size and time. "." and ".." are dropped and the NLST order is kept.
func classify(names []string, entries []*ftp.Entry) (files, dirs []*ftp.Entry) {
	detail := make(map[string]*ftp.Entry, len(entries))
	for _, e := range entries {
		detail[e.Name] = e
	}

	seen := make(map[string]bool, len(names))
	for _, name := range names {
		base := path.Base(strings.TrimRight(name, "/"))
		if base == "" || base == "." || base == ".." || base == "/" || seen[base] {
			continue
		}
		seen[base] = true

		e, ok := detail[base]
		if !ok {
			files = append(files, &ftp.Entry{Name: base, Type: ftp.EntryTypeFile})
			continue
		}
		if e.Type == ftp.EntryTypeFolder {
			dirs = append(dirs, e)
		} else {
			files = append(files, e)
		}
	}
	return files, dirs
}

// list runs NLST and LIST on dir. Servers that answer NLST on an empty
// directory with 450/550 are treated as listing nothing.
func list(c Conn, dir string) (files, dirs []*ftp.Entry, err error) {
	entries, err := c.List(dir)
	if err != nil {
		return nil, nil, translateError(err)
	}
	names, err := c.NameList(dir)
	if err != nil {
		if !isNotFound(err) {
			return nil, nil, translateError(err)
		}
		names = nil
	}
	files, dirs = classify(names, entries)
	return files, dirs, nil
}

// find looks name up in the listing of dir.
func find(c Conn, dir, name string) (*ftp.Entry, error) {
	files, dirs, err := list(c, dir)
	if err != nil {
		return nil, err
	}
	for _, e := range dirs {
		if e.Name == name {
			return e, nil
		}
	}
	for _, e := range files {
		if e.Name == name {
			return e, nil
		}
	}
	return nil, nil
}
