package auth

import (
	"sync"
	"testing"
	"time"
)

func TestRevocationList_RevokeAndCheck(t *testing.T) {
	l := NewRevocationList()
	l.Revoke("token-abc", time.Now().Add(time.Hour))

	if !l.IsRevoked("token-abc") {
		t.Error("expected token-abc to be revoked")
	}
	if l.IsRevoked("token-xyz") {
		t.Error("unknown token should not be revoked")
	}
}

func TestRevocationList_IgnoresEmptyID(t *testing.T) {
	l := NewRevocationList()
	l.Revoke("", time.Now().Add(time.Hour))
	if l.Len() != 0 {
		t.Errorf("expected empty list, got %d", l.Len())
	}
}

func TestRevocationList_Prune(t *testing.T) {
	l := NewRevocationList()
	now := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	l.Revoke("expired", now.Add(-time.Minute))
	l.Revoke("live", now.Add(time.Minute))

	if n := l.Prune(now); n != 1 {
		t.Errorf("pruned %d, want 1", n)
	}
	if l.IsRevoked("expired") {
		t.Error("expired entry should be gone")
	}
	if !l.IsRevoked("live") {
		t.Error("live entry should remain")
	}
}

func TestRevocationList_Concurrent(t *testing.T) {
	l := NewRevocationList()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			l.Revoke(string(rune('a'+i%26))+"-token", time.Now().Add(time.Hour))
		}(i)
		go func() {
			defer wg.Done()
			_ = l.IsRevoked("a-token")
		}()
	}
	wg.Wait()
	if l.Len() != 26 {
		t.Errorf("expected 26 distinct entries, got %d", l.Len())
	}
}
