package xconf

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatch_Validation(t *testing.T) {
	t.Run("bytes config rejected", func(t *testing.T) {
		cfg, err := NewFromBytes([]byte("value: 1"), FormatYAML)
		require.NoError(t, err)

		_, err = Watch(cfg, func(Config, error) {})
		assert.ErrorIs(t, err, ErrNotFromFile)
	})

	t.Run("nil callback rejected", func(t *testing.T) {
		path := writeFile(t, "flux.yaml", "value: 1")
		cfg, err := New(path)
		require.NoError(t, err)

		_, err = Watch(cfg, nil)
		assert.Error(t, err)
	})
}

func TestWatcher_ReloadOnChange(t *testing.T) {
	path := writeFile(t, "flux.yaml", "value: 1")

	cfg, err := New(path)
	require.NoError(t, err)

	var mu sync.Mutex
	var callbacks int
	var lastErr error
	done := make(chan struct{}, 8)

	w, err := Watch(cfg, func(_ Config, err error) {
		mu.Lock()
		callbacks++
		lastErr = err
		mu.Unlock()
		done <- struct{}{}
	})
	require.NoError(t, err)

	require.NoError(t, w.Start())
	t.Cleanup(w.Stop)

	require.NoError(t, os.WriteFile(path, []byte("value: 2"), 0o600))

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not observe the file change")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.NoError(t, lastErr)
	assert.GreaterOrEqual(t, callbacks, 1)
	assert.Equal(t, 2, cfg.Client().Int("value"))
}

func TestWatcher_RenameCreateSave(t *testing.T) {
	// 模拟编辑器的 rename+create 保存方式：写临时文件后原子替换
	path := writeFile(t, "flux.yaml", "value: 1")

	cfg, err := New(path)
	require.NoError(t, err)

	done := make(chan struct{}, 8)
	w, err := Watch(cfg, func(_ Config, err error) {
		if err == nil {
			done <- struct{}{}
		}
	})
	require.NoError(t, err)

	require.NoError(t, w.Start())
	t.Cleanup(w.Stop)

	tmp := filepath.Join(filepath.Dir(path), ".flux.yaml.tmp")
	require.NoError(t, os.WriteFile(tmp, []byte("value: 3"), 0o600))
	require.NoError(t, os.Rename(tmp, path))

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not observe the atomic replace")
	}
	assert.Equal(t, 3, cfg.Client().Int("value"))
}

func TestWatcher_StartStop(t *testing.T) {
	path := writeFile(t, "flux.yaml", "value: 1")
	cfg, err := New(path)
	require.NoError(t, err)

	w, err := Watch(cfg, func(Config, error) {})
	require.NoError(t, err)

	require.NoError(t, w.Start())
	assert.ErrorIs(t, w.Start(), ErrWatcherRunning)

	w.Stop()
	w.Stop() // 幂等

	// 停止后可以重新启动
	require.NoError(t, w.Start())
	w.Stop()
}

func TestWatcher_NoReloadForUnrelatedFiles(t *testing.T) {
	path := writeFile(t, "flux.yaml", "value: 1")
	cfg, err := New(path)
	require.NoError(t, err)

	var mu sync.Mutex
	var callbacks int
	w, err := Watch(cfg, func(Config, error) {
		mu.Lock()
		callbacks++
		mu.Unlock()
	})
	require.NoError(t, err)

	require.NoError(t, w.Start())
	t.Cleanup(w.Stop)

	// 同目录的其他文件变更不触发重载
	other := filepath.Join(filepath.Dir(path), "other.yaml")
	require.NoError(t, os.WriteFile(other, []byte("x: 1"), 0o600))

	time.Sleep(300 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, callbacks)
}
