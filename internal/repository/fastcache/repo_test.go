package fastcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/qacache/internal/db"
	"github.com/kailas-cloud/qacache/internal/domain"
	"github.com/kailas-cloud/qacache/internal/domain/question"
)

type mockStore struct {
	getFn func(ctx context.Context, key string) ([]byte, error)
	setFn func(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

func (m *mockStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	return nil, db.ErrKeyNotFound
}

func (m *mockStore) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.setFn != nil {
		return m.setFn(ctx, key, value, ttl)
	}
	return nil
}

var fp = question.Fingerprint("what is go")

func TestKey_Format(t *testing.T) {
	k := Key(fp)
	if len(k) != len("qa:")+64 || k[:3] != "qa:" {
		t.Errorf("unexpected key %q", k)
	}
}

func TestGet_Hit(t *testing.T) {
	ms := &mockStore{getFn: func(_ context.Context, key string) ([]byte, error) {
		if key != Key(fp) {
			t.Errorf("key = %q", key)
		}
		return []byte("a language"), nil
	}}

	got, err := New(ms).Get(context.Background(), fp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "a language" {
		t.Errorf("got %q", got)
	}
}

func TestGet_Miss(t *testing.T) {
	_, err := New(&mockStore{}).Get(context.Background(), fp)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGet_EmptyValueIsMiss(t *testing.T) {
	ms := &mockStore{getFn: func(_ context.Context, _ string) ([]byte, error) { return []byte{}, nil }}
	_, err := New(ms).Get(context.Background(), fp)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGet_StoreError(t *testing.T) {
	boom := &db.Error{Op: db.OpGet, Err: errors.New("conn reset")}
	ms := &mockStore{getFn: func(_ context.Context, _ string) ([]byte, error) { return nil, boom }}

	_, err := New(ms).Get(context.Background(), fp)
	if err == nil || errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected store error, got %v", err)
	}
	var dbErr *db.Error
	if !errors.As(err, &dbErr) {
		t.Errorf("expected wrapped db.Error, got %T", err)
	}
}

func TestGet_BadFingerprint(t *testing.T) {
	_, err := New(&mockStore{}).Get(context.Background(), "short")
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSet_PassesTTL(t *testing.T) {
	var gotTTL time.Duration
	var gotValue string
	ms := &mockStore{setFn: func(_ context.Context, _ string, v []byte, ttl time.Duration) error {
		gotTTL, gotValue = ttl, string(v)
		return nil
	}}

	if err := New(ms).Set(context.Background(), fp, "answer", time.Hour); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotTTL != time.Hour || gotValue != "answer" {
		t.Errorf("ttl=%v value=%q", gotTTL, gotValue)
	}
}

func TestSet_Error(t *testing.T) {
	ms := &mockStore{setFn: func(_ context.Context, _ string, _ []byte, _ time.Duration) error {
		return errors.New("readonly replica")
	}}
	if err := New(ms).Set(context.Background(), fp, "a", time.Hour); err == nil {
		t.Fatal("expected error")
	}
}
