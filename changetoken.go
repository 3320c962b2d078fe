package unifs

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// ============================================================================
// ChangeToken Implementations
// ============================================================================

// callbackList holds the callbacks registered on a token. Unregistering
// blanks the slot so that indexes stay stable. done closes when the token
// fires, when it is stopped, or when the last registered callback is
// unregistered.
type callbackList struct {
	mu        sync.RWMutex
	changed   atomic.Bool
	callbacks []func()
	active    int
	done      chan struct{}
	stopOnce  sync.Once
}

func (l *callbackList) register(callback func()) func() {
	l.mu.Lock()
	l.callbacks = append(l.callbacks, callback)
	index := len(l.callbacks) - 1
	l.active++
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			l.callbacks[index] = nil
			l.active--
			idle := l.active == 0
			l.mu.Unlock()
			if idle {
				l.stop()
			}
		})
	}
}

// fire marks the list changed and runs the callbacks once.
func (l *callbackList) fire() {
	if l.changed.Swap(true) {
		return
	}

	l.mu.RLock()
	callbacks := make([]func(), len(l.callbacks))
	copy(callbacks, l.callbacks)
	l.mu.RUnlock()

	for _, cb := range callbacks {
		if cb != nil {
			cb()
		}
	}
	l.stop()
}

func (l *callbackList) doneChan() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done == nil {
		l.done = make(chan struct{})
	}
	return l.done
}

func (l *callbackList) stop() {
	l.stopOnce.Do(func() {
		l.mu.Lock()
		if l.done == nil {
			l.done = make(chan struct{})
		}
		close(l.done)
		l.mu.Unlock()
	})
}

// CallbackChangeToken is signalled by a driver with native change events.
type CallbackChangeToken struct {
	list callbackList
}

// NewCallbackChangeToken creates a token that the caller signals.
func NewCallbackChangeToken() *CallbackChangeToken {
	return &CallbackChangeToken{}
}

func (t *CallbackChangeToken) HasChanged() bool {
	return t.list.changed.Load()
}

func (t *CallbackChangeToken) ActiveChangeCallbacks() bool {
	return true
}

// RegisterChangeCallback adds a callback. Once every registered callback has
// been unregistered the token is stopped and never fires.
func (t *CallbackChangeToken) RegisterChangeCallback(callback func()) (unregister func()) {
	return t.list.register(callback)
}

// SignalChange marks the token as changed and invokes all callbacks.
// Later calls do nothing.
func (t *CallbackChangeToken) SignalChange() {
	t.list.fire()
}

// Stop tells the driver to stop producing events for the token and release
// its watcher. Safe to call more than once.
func (t *CallbackChangeToken) Stop() {
	t.list.stop()
}

// Done is closed when the token has fired or stopped. Drivers end their
// watch loops on it.
func (t *CallbackChangeToken) Done() <-chan struct{} {
	return t.list.doneChan()
}

// ============================================================================
// Polling ChangeToken
// ============================================================================

// PollingChangeToken compares directory snapshots at a fixed interval.
// The polling goroutine exits when the token fires, when Stop is called, when
// the last registered callback is unregistered, or when the context given to
// PollDirectory is cancelled.
type PollingChangeToken struct {
	list   callbackList
	cancel context.CancelFunc
}

// DefaultPollInterval is used by PollDirectory when interval is zero.
const DefaultPollInterval = 5 * time.Second

// PollDirectory watches dir by listing the files matching pattern (all
// levels) and comparing names, sizes and modification times. Backends
// that report synthetic metadata are only seen to change when files
// appear or disappear.
func PollDirectory(ctx context.Context, dir Directory, pattern string, interval time.Duration) (*PollingChangeToken, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if _, err := CompilePattern(pattern); err != nil {
		return nil, err
	}

	initial, err := snapshot(ctx, dir, pattern)
	if err != nil {
		return nil, NewPathError("watch", dir.FullName(), err)
	}

	ctx, cancel := context.WithCancel(ctx)
	t := &PollingChangeToken{cancel: cancel}
	go t.poll(ctx, interval, func() bool {
		current, err := snapshot(ctx, dir, pattern)
		return err == nil && current != initial
	})
	return t, nil
}

func (t *PollingChangeToken) poll(ctx context.Context, interval time.Duration, changed func() bool) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer t.cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.list.doneChan():
			return
		case <-ticker.C:
			if changed() {
				t.list.fire()
				return
			}
		}
	}
}

func (t *PollingChangeToken) HasChanged() bool {
	return t.list.changed.Load()
}

func (t *PollingChangeToken) ActiveChangeCallbacks() bool {
	return true
}

func (t *PollingChangeToken) RegisterChangeCallback(callback func()) (unregister func()) {
	return t.list.register(callback)
}

// Stop ends polling. Safe to call more than once.
func (t *PollingChangeToken) Stop() {
	t.list.stop()
	t.cancel()
}

func snapshot(ctx context.Context, dir Directory, pattern string) (string, error) {
	var lines []string
	for f, err := range dir.EnumerateFiles(ctx, pattern, SearchAllDirectories) {
		if err != nil {
			return "", err
		}
		line := f.FullName()
		if info, err := f.Stat(ctx); err == nil && !info.Synthetic {
			line += "|" + strconv.FormatInt(info.Size, 10) + "|" + strconv.FormatInt(info.Modified.UnixNano(), 10)
		}
		lines = append(lines, line)
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n"), nil
}

// NeverChangeToken never fires. Returned for read-only content.
type NeverChangeToken struct{}

func (NeverChangeToken) HasChanged() bool {
	return false
}

func (NeverChangeToken) ActiveChangeCallbacks() bool {
	return false
}

func (NeverChangeToken) RegisterChangeCallback(func()) func() {
	return func() {}
}

// OnChange keeps watching: each time a token fires, changeAction runs and a
// new token is requested from tokenProducer. Watching stops when the
// returned cancel function is called or tokenProducer fails.
//
//	cancel := unifs.OnChange(
//	    func() (unifs.ChangeToken, error) {
//	        return dir.(unifs.CanWatch).Watch(ctx, "*.json")
//	    },
//	    func() {
//	        log.Println("config changed, reloading")
//	    },
//	)
//	defer cancel()
func OnChange(tokenProducer func() (ChangeToken, error), changeAction func()) (cancel func()) {
	ctx, cancelFunc := context.WithCancel(context.Background())

	go func() {
		for {
			token, err := tokenProducer()
			if err != nil {
				return
			}

			done := make(chan struct{})
			var once sync.Once
			unregister := token.RegisterChangeCallback(func() {
				once.Do(func() { close(done) })
			})
			if token.HasChanged() {
				once.Do(func() { close(done) })
			}

			select {
			case <-ctx.Done():
				unregister()
				if s, ok := token.(interface{ Stop() }); ok {
					s.Stop()
				}
				return
			case <-done:
				unregister()
				changeAction()
			}
		}
	}()

	return cancelFunc
}
