package memory

import (
	"context"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"emperror.dev/errors"

	"github.com/gobeaver/unifs"
)

// ErrStoreFull is returned when a write would exceed the store's MaxSize.
var ErrStoreFull = errors.NewPlain("memory store is full")

// memoryFile represents a file stored in memory
type memoryFile struct {
	content  []byte
	created  time.Time
	modTime  time.Time
	accessed time.Time
}

// memoryDir represents a directory in memory
type memoryDir struct {
	created time.Time
	modTime time.Time
}

// watchEntry represents a single watch subscription
type watchEntry struct {
	root    string
	pattern *unifs.NamePattern
	token   *unifs.CallbackChangeToken
}

// Store holds the content of every memory:// volume served by one provider.
// Keys are "<volume>/<path>", volume roots always exist.
type Store struct {
	mu      sync.RWMutex
	files   map[string]*memoryFile
	dirs    map[string]*memoryDir
	maxSize int64 // Maximum total storage size (0 = unlimited)
	size    int64 // Current total size

	// Watch support
	watchMu sync.RWMutex
	watches []*watchEntry
}

// Config holds configuration for the memory store
type Config struct {
	// MaxSize is the maximum total storage size in bytes (0 = unlimited)
	MaxSize int64
}

// New creates an empty store.
func New(cfg ...Config) *Store {
	var maxSize int64
	if len(cfg) > 0 {
		maxSize = cfg[0].MaxSize
	}
	return &Store{
		files:   make(map[string]*memoryFile),
		dirs:    make(map[string]*memoryDir),
		maxSize: maxSize,
	}
}

// Size returns the number of bytes held by all files.
func (s *Store) Size() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}

// FileCount returns the number of files in all volumes.
func (s *Store) FileCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}

// Clear removes all files and directories.
func (s *Store) Clear() {
	s.mu.Lock()
	s.files = make(map[string]*memoryFile)
	s.dirs = make(map[string]*memoryDir)
	s.size = 0
	s.mu.Unlock()
}

func isRoot(key string) bool {
	return strings.HasSuffix(key, "/") && strings.Count(key, "/") == 1
}

func parentKey(key string) string {
	volume, p, _ := strings.Cut(key, "/")
	return volume + path.Dir("/"+p)
}

func (s *Store) isDir(key string) bool {
	if isRoot(key) {
		return true
	}
	_, ok := s.dirs[key]
	return ok
}

// ensureParentDirs creates every missing ancestor of key. Callers hold mu.
func (s *Store) ensureParentDirs(key string) {
	now := time.Now().UTC()
	for dir := parentKey(key); !isRoot(dir); dir = parentKey(dir) {
		if _, ok := s.dirs[dir]; ok {
			return
		}
		s.dirs[dir] = &memoryDir{created: now, modTime: now}
	}
}

// file returns a copy of the file entry, or nil.
func (s *Store) file(key string) *memoryFile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.files[key]
	if !ok {
		return nil
	}
	c := *f
	return &c
}

func (s *Store) dir(key string) (*memoryDir, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if isRoot(key) {
		return nil, true
	}
	d, ok := s.dirs[key]
	return d, ok
}

func (s *Store) read(key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[key]
	if !ok {
		return nil, unifs.ErrNotExist
	}
	f.accessed = time.Now().UTC()
	return append([]byte(nil), f.content...), nil
}

// write stores data under key following mode.
func (s *Store) write(key string, data []byte, mode unifs.WriteMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isDir(key) {
		return unifs.ErrIsDir
	}
	existing, exists := s.files[key]

	var content []byte
	switch mode {
	case unifs.ModeCreateNew:
		if exists {
			return unifs.ErrExist
		}
		content = data
	case unifs.ModeOpen, unifs.ModeTruncate:
		if !exists {
			return unifs.ErrNotExist
		}
		if mode == unifs.ModeTruncate {
			content = data
		} else {
			content = overlay(existing.content, data)
		}
	case unifs.ModeOpenOrCreate:
		if exists {
			content = overlay(existing.content, data)
		} else {
			content = data
		}
	case unifs.ModeAppend:
		if exists {
			content = append(append([]byte(nil), existing.content...), data...)
		} else {
			content = data
		}
	default:
		content = data
	}
	content = append([]byte(nil), content...)

	newSize := s.size + int64(len(content))
	if exists {
		newSize -= int64(len(existing.content))
	}
	if s.maxSize > 0 && newSize > s.maxSize {
		return ErrStoreFull
	}

	s.ensureParentDirs(key)
	now := time.Now().UTC()
	f := &memoryFile{content: content, created: now, modTime: now, accessed: now}
	if exists {
		f.created = existing.created
	}
	s.files[key] = f
	s.size = newSize

	go s.notifyWatchers(key)
	return nil
}

// overlay writes data over current from offset zero without truncating.
func overlay(current, data []byte) []byte {
	if len(current) <= len(data) {
		return data
	}
	result := append([]byte(nil), current...)
	copy(result, data)
	return result
}

func (s *Store) mkdirAll(key string) error {
	if isRoot(key) {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[key]; ok {
		return unifs.ErrNotDir
	}
	s.ensureParentDirs(key)
	if _, ok := s.dirs[key]; !ok {
		now := time.Now().UTC()
		s.dirs[key] = &memoryDir{created: now, modTime: now}
	}
	return nil
}

// remove deletes a file, or a directory with everything below it. Volume
// roots are emptied but stay.
func (s *Store) remove(key string) {
	s.mu.Lock()
	if f, ok := s.files[key]; ok {
		s.size -= int64(len(f.content))
		delete(s.files, key)
		s.mu.Unlock()
		go s.notifyWatchers(key)
		return
	}

	prefix := strings.TrimSuffix(key, "/") + "/"
	var removed []string
	for k, f := range s.files {
		if strings.HasPrefix(k, prefix) {
			s.size -= int64(len(f.content))
			delete(s.files, k)
			removed = append(removed, k)
		}
	}
	for k := range s.dirs {
		if strings.HasPrefix(k, prefix) {
			delete(s.dirs, k)
		}
	}
	delete(s.dirs, key)
	s.mu.Unlock()

	for _, k := range removed {
		go s.notifyWatchers(k)
	}
}

// rename moves a file or directory subtree from one key to another.
func (s *Store) rename(from, to string) error {
	if from == to {
		return nil
	}
	s.mu.Lock()
	moved, err := s.renameLocked(from, to)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	for _, k := range moved {
		go s.notifyWatchers(k)
	}
	return nil
}

// renameLocked moves a file, or a directory with its subtree, from one key to
// another. A file replaces an existing file; a directory is merged into an
// existing directory and replaces files it collides with. Moving onto an
// entry of the other kind fails without changing anything.
func (s *Store) renameLocked(from, to string) ([]string, error) {
	if f, ok := s.files[from]; ok {
		if s.isDir(to) {
			return nil, unifs.ErrIsDir
		}
		s.replaceFile(to, f)
		delete(s.files, from)
		return []string{from, to}, nil
	}

	d, ok := s.dirs[from]
	if !ok {
		return nil, unifs.ErrNotExist
	}
	if _, ok := s.files[to]; ok {
		return nil, unifs.ErrNotDir
	}

	prefix := from + "/"
	files := make(map[string]*memoryFile)
	dirs := make(map[string]*memoryDir)
	for k, f := range s.files {
		if strings.HasPrefix(k, prefix) {
			if _, ok := s.dirs[to+strings.TrimPrefix(k, from)]; ok {
				return nil, unifs.ErrIsDir
			}
			files[k] = f
		}
	}
	for k, sub := range s.dirs {
		if strings.HasPrefix(k, prefix) {
			if _, ok := s.files[to+strings.TrimPrefix(k, from)]; ok {
				return nil, unifs.ErrNotDir
			}
			dirs[k] = sub
		}
	}

	var moved []string
	for k, f := range files {
		dst := to + strings.TrimPrefix(k, from)
		delete(s.files, k)
		s.replaceFile(dst, f)
		moved = append(moved, k, dst)
	}
	for k, sub := range dirs {
		delete(s.dirs, k)
		dst := to + strings.TrimPrefix(k, from)
		if _, ok := s.dirs[dst]; !ok {
			s.dirs[dst] = sub
		}
	}
	delete(s.dirs, from)
	if _, ok := s.dirs[to]; !ok {
		s.ensureParentDirs(to)
		s.dirs[to] = d
	}
	return moved, nil
}

// replaceFile stores f under key, releasing the size of a file it replaces.
// f's content is already counted in s.size.
func (s *Store) replaceFile(key string, f *memoryFile) {
	if old, ok := s.files[key]; ok {
		s.size -= int64(len(old.content))
	}
	s.ensureParentDirs(key)
	s.files[key] = f
}

// children lists the direct children of the directory key, sorted by name.
func (s *Store) children(key string) (files, dirs []string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prefix := strings.TrimSuffix(key, "/") + "/"
	for k := range s.files {
		if rest, ok := strings.CutPrefix(k, prefix); ok && rest != "" && !strings.Contains(rest, "/") {
			files = append(files, rest)
		}
	}
	for k := range s.dirs {
		if rest, ok := strings.CutPrefix(k, prefix); ok && rest != "" && !strings.Contains(rest, "/") {
			dirs = append(dirs, rest)
		}
	}
	sort.Strings(files)
	sort.Strings(dirs)
	return files, dirs
}

// treeSize sums the sizes of all files below key.
func (s *Store) treeSize(key string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prefix := strings.TrimSuffix(key, "/") + "/"
	var total int64
	for k, f := range s.files {
		if strings.HasPrefix(k, prefix) {
			total += int64(len(f.content))
		}
	}
	return total
}

// ============================================================================
// Watcher Implementation
// ============================================================================

func (s *Store) watch(ctx context.Context, root string, pattern *unifs.NamePattern) *unifs.CallbackChangeToken {
	token := unifs.NewCallbackChangeToken()
	s.watchMu.Lock()
	s.watches = append(s.watches, &watchEntry{root: strings.TrimSuffix(root, "/") + "/", pattern: pattern, token: token})
	s.watchMu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			token.Stop()
		case <-token.Done():
		}
		s.removeWatch(token)
	}()
	return token
}

// notifyWatchers signals all watchers below whose root key changed and
// whose pattern matches its name.
func (s *Store) notifyWatchers(key string) {
	s.watchMu.RLock()
	var fired []*unifs.CallbackChangeToken
	for _, entry := range s.watches {
		if strings.HasPrefix(key, entry.root) && entry.pattern.Match(path.Base(key)) {
			fired = append(fired, entry.token)
		}
	}
	s.watchMu.RUnlock()

	for _, token := range fired {
		select {
		case <-token.Done():
			continue
		default:
		}
		token.SignalChange()
		s.removeWatch(token)
	}
}

// removeWatch removes a watch entry by token
func (s *Store) removeWatch(token *unifs.CallbackChangeToken) {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()

	for i, entry := range s.watches {
		if entry.token == token {
			s.watches[i] = s.watches[len(s.watches)-1]
			s.watches = s.watches[:len(s.watches)-1]
			return
		}
	}
}
