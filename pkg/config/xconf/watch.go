package xconf

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchCallback 文件变更回调函数。
// 配置文件变更并完成重载后调用，err 表示重载是否成功。
type WatchCallback func(cfg Config, err error)

// defaultDebounce 默认防抖时间。
// 编辑器保存往往触发多个连续事件，短窗口内合并为一次重载。
const defaultDebounce = 100 * time.Millisecond

// Watcher 配置文件监视器，
// 监控配置文件变更并自动重载。
type Watcher struct {
	cfg      *koanfConfig
	fw       *fsnotify.Watcher
	callback WatchCallback
	debounce time.Duration

	mu      sync.Mutex
	running bool
	done    chan struct{}
	timer   *time.Timer
}

// Watch 创建配置文件监视器。
//
// 只能监视从文件创建的 Config（通过 [New] 或 [Load] 创建），
// 从字节数据创建的配置返回 [ErrNotFromFile]。
// 返回的 Watcher 需要调用 Start 开始监视，Stop 停止监视。
func Watch(cfg Config, callback WatchCallback) (*Watcher, error) {
	kc, ok := cfg.(*koanfConfig)
	if !ok || kc.isBytes {
		return nil, ErrNotFromFile
	}
	if callback == nil {
		return nil, fmt.Errorf("xconf: watch callback is nil")
	}

	return &Watcher{
		cfg:      kc,
		callback: callback,
		debounce: defaultDebounce,
	}, nil
}

// Start 开始监视，幂等性由 [ErrWatcherRunning] 保证。
// 监视配置文件所在目录而非文件本身：
// 许多编辑工具以 rename+create 方式保存，直接监视文件会丢失事件。
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return ErrWatcherRunning
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("xconf: create fsnotify watcher: %w", err)
	}

	dir := filepath.Dir(w.cfg.Path())
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return fmt.Errorf("xconf: watch %s: %w", dir, err)
	}

	w.fw = fw
	w.running = true
	w.done = make(chan struct{})

	go w.loop()
	return nil
}

// Stop 停止监视，幂等。
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	w.running = false

	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	close(w.done)
	_ = w.fw.Close()
}

// loop 事件循环：过滤目标文件的写入/创建/重命名事件，防抖后重载。
func (w *Watcher) loop() {
	target := filepath.Clean(w.cfg.Path())

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.scheduleReload()
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.callback(w.cfg, fmt.Errorf("xconf: watch error: %w", err))
		}
	}
}

// scheduleReload 重置防抖定时器，到期执行一次重载
func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		err := w.cfg.Reload()
		w.callback(w.cfg, err)
	})
}
