package config

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// ErrInvalidLogic wraps validation failures during a reload, so callers
// can tell a rejected config apart from a read or parse error.
var ErrInvalidLogic = errors.New("invalid selection logic")

// Loader reads a selection-logic YAML file and watches it for changes.
type Loader struct {
	path     string
	mu       sync.RWMutex
	current  *Logic
	validate func(*Logic) error
	onChange []func(*Logic)
	watcher  *fsnotify.Watcher
}

// NewLoader creates a Loader and performs the initial load.
func NewLoader(path string) (*Loader, error) {
	l := &Loader{path: path}
	cfg, err := l.load()
	if err != nil {
		return nil, err
	}
	l.current = cfg
	return l, nil
}

// Logic returns the current (latest) selection logic.
func (l *Loader) Logic() *Logic {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// SetValidate registers a check run against freshly read logic before it
// is accepted. When the check fails the reload is rejected and the last
// good logic keeps serving. The initial NewLoader read is not checked;
// callers validate that one themselves.
func (l *Loader) SetValidate(fn func(*Logic) error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.validate = fn
}

// OnChange registers a callback invoked whenever the logic reloads.
func (l *Loader) OnChange(fn func(*Logic)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = append(l.onChange, fn)
}

// Watch starts a background goroutine that hot-reloads the logic on file
// changes. Call the returned stop function to clean up.
func (l *Loader) Watch() (stop func(), err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("logic watcher: %w", err)
	}
	if err := w.Add(l.path); err != nil {
		w.Close()
		return nil, fmt.Errorf("logic watcher add %s: %w", l.path, err)
	}
	l.watcher = w

	done := make(chan struct{})
	go func() {
		defer w.Close()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
					cfg, err := l.load()
					if err != nil {
						// Keep serving the old logic.
						continue
					}
					l.swap(cfg)
				}
			case <-w.Errors:
				// Ignore watcher errors.
			case <-done:
				return
			}
		}
	}()

	return func() { close(done) }, nil
}

// Reload forces an immediate re-read of the logic file. On any error,
// including a SetValidate rejection, the current logic is left in place.
func (l *Loader) Reload() (*Logic, error) {
	cfg, err := l.load()
	if err != nil {
		return nil, err
	}
	l.swap(cfg)
	return cfg, nil
}

func (l *Loader) swap(cfg *Logic) {
	l.mu.Lock()
	l.current = cfg
	callbacks := make([]func(*Logic), len(l.onChange))
	copy(callbacks, l.onChange)
	l.mu.Unlock()
	for _, fn := range callbacks {
		fn(cfg)
	}
}

func (l *Loader) load() (*Logic, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("read logic %s: %w", l.path, err)
	}
	cfg, err := ParseLogic(data)
	if err != nil {
		return nil, err
	}
	l.mu.RLock()
	validate := l.validate
	l.mu.RUnlock()
	if validate != nil {
		if err := validate(cfg); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidLogic, err)
		}
	}
	return cfg, nil
}

// ParseLogic decodes selection logic from YAML bytes.
func ParseLogic(data []byte) (*Logic, error) {
	var cfg Logic
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse selection logic: %w", err)
	}
	if cfg.DecisionTree == nil {
		cfg.DecisionTree = map[string]Step{}
	}
	return &cfg, nil
}
