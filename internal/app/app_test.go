package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"devhub/pkg/domain"
	"devhub/pkg/store"
)

const testJWTSecret = "0123456789abcdef0123456789abcdef"

type fakeObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
	putErr  error
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{objects: map[string][]byte{}}
}

func (f *fakeObjects) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.objects[key] = data
	return nil
}

func (f *fakeObjects) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[key]; !ok {
		return "", fmt.Errorf("no such object %q", key)
	}
	return "https://objects.test/" + key + "?sig=abc", nil
}

func (f *fakeObjects) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeObjects) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

type fakeFeed struct {
	mu     sync.Mutex
	events []domain.Event
}

func (f *fakeFeed) Publish(_ context.Context, event domain.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	f.events = append(f.events, event)
	return nil
}

func (f *fakeFeed) Recent(_ context.Context, limit int) ([]domain.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Event, 0, len(f.events))
	for i := len(f.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, f.events[i])
	}
	return out, nil
}

type testEnv struct {
	app     *App
	store   *store.MemoryStore
	objects *fakeObjects
	feed    *fakeFeed
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dataStore := store.NewMemoryStore()
	objects := newFakeObjects()
	feed := &fakeFeed{}
	sessions, err := store.NewJWTSessionStore(testJWTSecret, time.Minute, store.NewMemoryTokenRevoker(), store.JWTOptions{})
	if err != nil {
		t.Fatalf("NewJWTSessionStore: %v", err)
	}
	a, err := New(Config{
		Store:         dataStore,
		Objects:       objects,
		Sessions:      sessions,
		RefreshTokens: store.NewMemoryRefreshTokenStore(),
		Feed:          feed,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &testEnv{app: a, store: dataStore, objects: objects, feed: feed}
}

func (e *testEnv) signUp(t *testing.T, username string) domain.User {
	t.Helper()
	user, _, err := e.app.SignUp(SignUpRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: "hunter2pass1",
	})
	if err != nil {
		t.Fatalf("SignUp(%s): %v", username, err)
	}
	return user
}

func upload(name, content string) Upload {
	return Upload{
		Filename:    name,
		ContentType: "application/octet-stream",
		Size:        int64(len(content)),
		Reader:      bytes.NewReader([]byte(content)),
	}
}

func kindOf(t *testing.T, err error, want Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", want)
	}
	if got := KindOf(err); got != want {
		t.Fatalf("error kind = %q, want %q (err: %v)", got, want, err)
	}
}

func hasFileNamed(files []domain.FileRef, originalName string) bool {
	return fileByOriginalName(files, originalName) >= 0
}

func mustContain(t *testing.T, s, sub string) {
	t.Helper()
	if !strings.Contains(s, sub) {
		t.Fatalf("%q does not contain %q", s, sub)
	}
}
