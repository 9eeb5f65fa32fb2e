package auth

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestFileWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "token")
	if err := os.WriteFile(path, []byte("first"), 0600); err != nil {
		t.Fatalf("write token: %v", err)
	}

	source := NewSource(nil)
	var mu sync.Mutex
	var tokens []string
	source.Watch(func(c *Credentials) {
		if c == nil {
			return
		}
		mu.Lock()
		tokens = append(tokens, c.Token)
		mu.Unlock()
	})

	w := NewFileWatcher(path, "user-42", source, nil)
	if err := w.Reload(); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher time to register before rewriting the file.
	time.Sleep(50 * time.Millisecond)

	// Replace by rename, the way token refreshers usually write.
	tmp := filepath.Join(dir, "token.tmp")
	if err := os.WriteFile(tmp, []byte("second\n"), 0600); err != nil {
		t.Fatalf("write tmp: %v", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatalf("rename: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got := source.Current(); got != nil && got.Token == "second" {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run returned %v", err)
	}

	got := source.Current()
	if got == nil || got.Token != "second" || got.SubjectID != "user-42" {
		t.Fatalf("Current() = %+v, want token second for user-42", got)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(tokens) != 2 || tokens[0] != "first" || tokens[1] != "second" {
		t.Errorf("tokens = %v, want [first second]", tokens)
	}
}

func TestFileWatcher_EmptyFileKeepsCredentials(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(path, []byte(""), 0600); err != nil {
		t.Fatalf("write token: %v", err)
	}

	source := NewSource(&Credentials{Token: "kept"})
	w := NewFileWatcher(path, "", source, nil)

	if err := w.Reload(); err == nil {
		t.Error("Reload of empty file returned nil error")
	}
	if got := source.Current(); got == nil || got.Token != "kept" {
		t.Errorf("Current() = %v, want kept", got)
	}
}
