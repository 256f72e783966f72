package store

import (
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func refreshStores(t *testing.T) map[string]RefreshTokenStore {
	t.Helper()
	redis := miniredis.RunT(t)
	return map[string]RefreshTokenStore{
		"memory": NewMemoryRefreshTokenStore(),
		"redis":  NewRedisRefreshTokenStore(redis.Addr(), ""),
	}
}

func TestRefreshTokenRotation(t *testing.T) {
	for name, s := range refreshStores(t) {
		t.Run(name, func(t *testing.T) {
			token, err := s.NewToken("user-1", time.Minute)
			if err != nil {
				t.Fatalf("new token: %v", err)
			}
			userID, next, err := s.RotateToken(token, time.Minute)
			if err != nil {
				t.Fatalf("rotate: %v", err)
			}
			if userID != "user-1" {
				t.Fatalf("userID = %q", userID)
			}
			if next == token {
				t.Fatal("token not rotated")
			}
			// The new token keeps working.
			if _, _, err := s.RotateToken(next, time.Minute); err != nil {
				t.Fatalf("rotate new token: %v", err)
			}
		})
	}
}

func TestRefreshTokenReplayKillsFamily(t *testing.T) {
	for name, s := range refreshStores(t) {
		t.Run(name, func(t *testing.T) {
			token, err := s.NewToken("user-1", time.Minute)
			if err != nil {
				t.Fatalf("new token: %v", err)
			}
			_, next, err := s.RotateToken(token, time.Minute)
			if err != nil {
				t.Fatalf("rotate: %v", err)
			}
			// Replay the consumed token.
			if _, _, err := s.RotateToken(token, time.Minute); !errors.Is(err, ErrRefreshTokenReplay) {
				t.Fatalf("replay err = %v, want ErrRefreshTokenReplay", err)
			}
			// The whole family is dead, including the latest token.
			if _, _, err := s.RotateToken(next, time.Minute); !errors.Is(err, ErrInvalidRefreshToken) {
				t.Fatalf("post-replay rotate err = %v, want ErrInvalidRefreshToken", err)
			}
		})
	}
}

func TestRefreshTokenDelete(t *testing.T) {
	for name, s := range refreshStores(t) {
		t.Run(name, func(t *testing.T) {
			token, err := s.NewToken("user-1", time.Minute)
			if err != nil {
				t.Fatalf("new token: %v", err)
			}
			if err := s.DeleteToken(token); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if _, _, err := s.RotateToken(token, time.Minute); !errors.Is(err, ErrInvalidRefreshToken) {
				t.Fatalf("rotate deleted token err = %v", err)
			}
			// Deleting an unknown token is fine.
			if err := s.DeleteToken("unknown"); err != nil {
				t.Fatalf("delete unknown: %v", err)
			}
		})
	}
}

func TestRefreshTokenUnknownToken(t *testing.T) {
	for name, s := range refreshStores(t) {
		t.Run(name, func(t *testing.T) {
			if _, _, err := s.RotateToken("nope", time.Minute); !errors.Is(err, ErrInvalidRefreshToken) {
				t.Fatalf("rotate unknown err = %v", err)
			}
		})
	}
}
