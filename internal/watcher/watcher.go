// Package watcher watches inbox directories with fsnotify and hands each
// settled file to a handler, usually the verification pipeline.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 400 * time.Millisecond

// Files are moved out of the inbox once handled, into these subdirectories of their root.
// Both are skipped when watching and syncing, so a restart never sees a handled file again.
const (
	ProcessedDir = "processed"
	FailedDir    = "failed"
)

// DefaultExtensions are the upload types the OCR stage accepts.
var DefaultExtensions = []string{".pdf", ".png", ".jpg", ".jpeg", ".tif", ".tiff", ".bmp", ".gif", ".webp"}

// Handler processes one file that has stopped changing.
type Handler func(ctx context.Context, path string) error

// Watcher watches inbox directories and invokes a Handler on new or rewritten files.
type Watcher struct {
	roots       []string
	extensions  []string
	recursive   bool
	handle      Handler
	debounce    time.Duration
	watcher     *fsnotify.Watcher
	mu          sync.Mutex
	debounceMap map[string]*time.Timer
	seen        map[string]fileStamp
	inFlight    map[string]bool
	rootPaths   map[string][]string
	ctx         context.Context
	done        chan struct{}
	started     bool
	stopOnce    sync.Once
	wg          sync.WaitGroup
	logger      *zap.Logger
}

type fileStamp struct {
	size    int64
	modTime time.Time
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce sets how long a file must stay quiet before it is handled.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// NewWatcher creates a watcher over roots. extensions filters which files are
// handled (empty = all). handle is called once per settled file version.
func NewWatcher(roots []string, extensions []string, recursive bool, handle Handler, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		roots:       roots,
		extensions:  extensions,
		recursive:   recursive,
		handle:      handle,
		debounce:    defaultDebounce,
		debounceMap: make(map[string]*time.Timer),
		seen:        make(map[string]fileStamp),
		inFlight:    make(map[string]bool),
		rootPaths:   make(map[string][]string),
		done:        make(chan struct{}),
		logger:      zap.NewNop(),
	}
	w.roots = make([]string, 0, len(roots))
	for _, r := range roots {
		w.roots = append(w.roots, absClean(r))
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = zap.NewNop()
	}
	return w
}

// Start starts the watcher. It runs until ctx is cancelled or Stop is called.
// Missing roots are created.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.watcher = watcher
	w.ctx = ctx
	w.started = true
	w.logger.Debug("inbox watcher starting", zap.Strings("roots", w.roots), zap.Strings("extensions", w.extensions), zap.Bool("recursive", w.recursive))
	for _, root := range w.roots {
		if err := w.addRootLocked(root); err != nil {
			_ = w.watcher.Close()
			w.watcher = nil
			w.started = false
			w.mu.Unlock()
			return err
		}
	}
	events, errs := watcher.Events, watcher.Errors
	w.mu.Unlock()
	go w.run(ctx, events, errs)
	return nil
}

func (w *Watcher) run(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-errs:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Warn("inbox watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := ev.Name
	if !w.underRoot(path) || ignored(path) || w.archived(path) {
		return
	}
	w.logger.Debug("inbox event", zap.String("op", ev.Op.String()), zap.String("path", path))
	switch {
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		info, err := os.Stat(path)
		if err == nil && info.IsDir() {
			w.handleNewDirectory(path)
			return
		}
		if w.matchExtension(path) {
			w.schedule(path)
		}
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		w.cancelDebounce(path)
		w.mu.Lock()
		delete(w.seen, path)
		w.mu.Unlock()
	}
}

// handleNewDirectory watches a directory that appeared under a root and
// schedules the files already inside it.
func (w *Watcher) handleNewDirectory(dirPath string) {
	w.mu.Lock()
	recursive := w.recursive
	watcher := w.watcher
	w.mu.Unlock()
	if watcher == nil || !recursive {
		return
	}
	_ = filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if err := watcher.Add(path); err != nil {
				w.logger.Debug("inbox watcher failed to add directory", zap.String("path", path), zap.Error(err))
			}
			return nil
		}
		if w.matchExtension(path) && !ignored(path) {
			w.schedule(path)
		}
		return nil
	})
}

func (w *Watcher) underRoot(path string) bool {
	w.mu.Lock()
	roots := append([]string(nil), w.roots...)
	w.mu.Unlock()
	clean := filepath.Clean(path)
	for _, root := range roots {
		rootClean := filepath.Clean(root)
		if rootClean == clean || inDir(rootClean, clean) {
			return true
		}
	}
	return false
}

// archived reports whether path lies in a processed or failed directory of a root.
func (w *Watcher) archived(path string) bool {
	w.mu.Lock()
	roots := append([]string(nil), w.roots...)
	w.mu.Unlock()
	for _, root := range roots {
		if isArchivePath(root, path) {
			return true
		}
	}
	return false
}

func isArchivePath(root, path string) bool {
	clean := filepath.Clean(path)
	for _, sub := range []string{ProcessedDir, FailedDir} {
		if inDir(filepath.Join(filepath.Clean(root), sub), clean) {
			return true
		}
	}
	return false
}

// rootForLocked returns the innermost root containing path.
func (w *Watcher) rootForLocked(path string) string {
	best := ""
	for _, root := range w.roots {
		if inDir(root, path) && len(root) > len(best) {
			best = root
		}
	}
	return best
}

func absClean(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

func inDir(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// ignored reports hidden files and in-progress downloads.
func ignored(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "~") {
		return true
	}
	switch strings.ToLower(filepath.Ext(base)) {
	case ".part", ".crdownload", ".tmp":
		return true
	}
	return false
}

func (w *Watcher) matchExtension(path string) bool {
	return matchExtension(path, w.extensions)
}

func matchExtension(path string, extensions []string) bool {
	ext := filepath.Ext(path)
	if len(extensions) == 0 {
		return true
	}
	extNorm := strings.TrimPrefix(strings.ToLower(ext), ".")
	for _, e := range extensions {
		if strings.TrimPrefix(strings.ToLower(e), ".") == extNorm {
			return true
		}
	}
	return false
}

func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return
	}
	if t, ok := w.debounceMap[path]; ok {
		t.Stop()
	}
	w.debounceMap[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.debounceMap, path)
		ctx := w.ctx
		started := w.started
		if started {
			w.wg.Add(1)
		}
		w.mu.Unlock()
		if !started {
			return
		}
		defer w.wg.Done()
		w.process(ctx, path)
	})
}

func (w *Watcher) cancelDebounce(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.debounceMap[path]; ok {
		t.Stop()
		delete(w.debounceMap, path)
	}
}

// process hands path to the handler unless this exact version was already handled, then
// moves it to the processed or failed directory of its root. A file whose handler was
// interrupted by shutdown stays in place and is picked up by the next sync.
func (w *Watcher) process(ctx context.Context, path string) {
	if w.handle == nil {
		return
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() || info.Size() == 0 {
		return
	}
	stamp := fileStamp{size: info.Size(), modTime: info.ModTime()}
	w.mu.Lock()
	if prev, ok := w.seen[path]; (ok && prev == stamp) || w.inFlight[path] {
		w.mu.Unlock()
		return
	}
	w.inFlight[path] = true
	root := w.rootForLocked(path)
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		delete(w.inFlight, path)
		w.mu.Unlock()
	}()

	start := time.Now()
	if err := w.handle(ctx, path); err != nil {
		if ctx.Err() != nil {
			w.logger.Warn("inbox file interrupted", zap.String("path", path), zap.Error(err))
			return
		}
		w.logger.Error("inbox file failed", zap.String("path", path), zap.Error(err))
		w.archive(root, path, FailedDir)
		return
	}
	w.mu.Lock()
	w.seen[path] = stamp
	w.mu.Unlock()
	w.logger.Info("inbox file processed", zap.String("path", path), zap.Duration("took", time.Since(start)))
	w.archive(root, path, ProcessedDir)
}

// archive moves path under <root>/<sub>, keeping its place relative to root. An existing
// file of the same name is not overwritten.
func (w *Watcher) archive(root, path, sub string) {
	if root == "" {
		return
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return
	}
	dest := filepath.Join(root, sub, rel)
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		w.logger.Warn("inbox archive dir", zap.String("path", dest), zap.Error(err))
		return
	}
	if _, err := os.Lstat(dest); err == nil {
		ext := filepath.Ext(dest)
		dest = fmt.Sprintf("%s-%d%s", strings.TrimSuffix(dest, ext), time.Now().UnixNano(), ext)
	}
	if err := os.Rename(path, dest); err != nil {
		w.logger.Warn("inbox file not moved; it will be handled again after a restart",
			zap.String("path", path), zap.Error(err))
		return
	}
	w.mu.Lock()
	delete(w.seen, path)
	w.mu.Unlock()
	w.logger.Debug("inbox file moved", zap.String("from", path), zap.String("to", dest))
}

// AddDirectory adds a root directory to watch and optionally schedules existing files.
func (w *Watcher) AddDirectory(root string, syncExisting bool) error {
	abs := absClean(root)
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher == nil {
		return nil
	}
	for _, r := range w.roots {
		if r == abs {
			return nil
		}
	}
	if err := w.addRootLocked(abs); err != nil {
		return err
	}
	w.roots = append(w.roots, abs)
	w.logger.Debug("inbox directory added", zap.String("path", abs), zap.Bool("sync_existing", syncExisting))
	if syncExisting {
		go w.syncDirectory(abs)
	}
	return nil
}

func (w *Watcher) addRootLocked(root string) error {
	root = filepath.Clean(root)
	if _, err := os.Stat(root); err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		if err := os.MkdirAll(root, 0755); err != nil {
			return err
		}
	}
	var paths []string
	if w.recursive {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				return nil
			}
			if isArchivePath(root, path) {
				return filepath.SkipDir
			}
			if err := w.watcher.Add(path); err != nil {
				return err
			}
			paths = append(paths, path)
			return nil
		})
		if err != nil {
			return err
		}
	} else {
		if err := w.watcher.Add(root); err != nil {
			return err
		}
		paths = append(paths, root)
	}
	w.rootPaths[root] = paths
	return nil
}

func (w *Watcher) syncDirectory(root string) {
	w.mu.Lock()
	recursive := w.recursive
	w.mu.Unlock()
	w.logger.Debug("inbox syncing directory", zap.String("root", root))
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && (!recursive || isArchivePath(root, path)) {
				return filepath.SkipDir
			}
			return nil
		}
		if w.matchExtension(path) && !ignored(path) {
			w.schedule(path)
		}
		return nil
	})
}

// RemoveDirectory stops watching the given root.
func (w *Watcher) RemoveDirectory(root string) error {
	abs := absClean(root)
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher == nil {
		return nil
	}
	idx := -1
	for i, r := range w.roots {
		if r == abs {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	for _, p := range w.rootPaths[abs] {
		_ = w.watcher.Remove(p)
	}
	delete(w.rootPaths, abs)
	w.roots = append(w.roots[:idx], w.roots[idx+1:]...)
	w.logger.Debug("inbox directory removed", zap.String("path", abs))
	return nil
}

// SetDirectories makes dirs the watched roots: roots not in dirs are removed and new ones
// are added with their existing files scheduled. Used when the configuration is reloaded.
func (w *Watcher) SetDirectories(dirs []string) error {
	want := make(map[string]bool, len(dirs))
	for _, d := range dirs {
		want[absClean(d)] = true
	}
	for _, r := range w.Directories() {
		if !want[r] {
			if err := w.RemoveDirectory(r); err != nil {
				return err
			}
		}
	}
	for _, d := range dirs {
		if err := w.AddDirectory(d, true); err != nil {
			return fmt.Errorf("watch %s: %w", d, err)
		}
	}
	return nil
}

// Directories returns a copy of the current watched root directories.
func (w *Watcher) Directories() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.roots...)
}

// SyncExistingFiles schedules every matching file already present in the roots.
// Call it after Start to pick up files dropped while the process was down.
func (w *Watcher) SyncExistingFiles() {
	for _, root := range w.Directories() {
		w.syncDirectory(root)
	}
}

// Stop stops the watcher, cancels pending files and waits for in-flight handlers.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started || w.watcher == nil {
		w.mu.Unlock()
		return
	}
	for path, t := range w.debounceMap {
		t.Stop()
		delete(w.debounceMap, path)
	}
	_ = w.watcher.Close()
	w.watcher = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
	w.wg.Wait()
}
