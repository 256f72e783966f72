package store

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrInvalidRefreshToken indicates token not found or expired.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrRefreshTokenReplay indicates refresh token reuse was detected;
	// the whole family is invalidated when this fires.
	ErrRefreshTokenReplay = errors.New("refresh token replay detected")
)

type refreshFamily struct {
	userID      string
	currentHash string
	expiry      time.Time
}

// MemoryRefreshTokenStore keeps refresh token families in memory.
type MemoryRefreshTokenStore struct {
	mu          sync.Mutex
	families    map[string]refreshFamily // familyID -> family
	tokenFamily map[string]string        // tokenHash -> familyID
}

// NewMemoryRefreshTokenStore constructs an in-memory refresh token store.
func NewMemoryRefreshTokenStore() *MemoryRefreshTokenStore {
	return &MemoryRefreshTokenStore{
		families:    make(map[string]refreshFamily),
		tokenFamily: make(map[string]string),
	}
}

// NewToken issues and stores a new refresh token family.
func (s *MemoryRefreshTokenStore) NewToken(userID string, ttl time.Duration) (string, error) {
	token, err := generateRefreshToken()
	if err != nil {
		return "", err
	}
	familyID := randomHexID(8)
	hash := refreshTokenHash(token)

	s.mu.Lock()
	s.families[familyID] = refreshFamily{
		userID:      userID,
		currentHash: hash,
		expiry:      time.Now().UTC().Add(ttl),
	}
	s.tokenFamily[hash] = familyID
	s.mu.Unlock()
	return token, nil
}

// RotateToken validates the token and issues a new one in the same
// family. Presenting a superseded token invalidates the family.
func (s *MemoryRefreshTokenStore) RotateToken(token string, ttl time.Duration) (string, string, error) {
	hash := refreshTokenHash(token)
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	familyID, ok := s.tokenFamily[hash]
	if !ok {
		return "", "", ErrInvalidRefreshToken
	}
	family, ok := s.families[familyID]
	if !ok || now.After(family.expiry) {
		s.dropFamilyLocked(familyID)
		return "", "", ErrInvalidRefreshToken
	}
	if family.currentHash != hash {
		s.dropFamilyLocked(familyID)
		return "", "", ErrRefreshTokenReplay
	}
	newToken, err := generateRefreshToken()
	if err != nil {
		return "", "", err
	}
	newHash := refreshTokenHash(newToken)
	family.currentHash = newHash
	family.expiry = now.Add(ttl)
	s.families[familyID] = family
	s.tokenFamily[newHash] = familyID
	return family.userID, newToken, nil
}

// DeleteToken removes the token's family (logout).
func (s *MemoryRefreshTokenStore) DeleteToken(token string) error {
	hash := refreshTokenHash(token)
	s.mu.Lock()
	defer s.mu.Unlock()
	if familyID, ok := s.tokenFamily[hash]; ok {
		s.dropFamilyLocked(familyID)
	}
	return nil
}

func (s *MemoryRefreshTokenStore) dropFamilyLocked(familyID string) {
	delete(s.families, familyID)
	for hash, fid := range s.tokenFamily {
		if fid == familyID {
			delete(s.tokenFamily, hash)
		}
	}
}

// RedisRefreshTokenStore stores refresh token families in Redis.
type RedisRefreshTokenStore struct {
	client *redis.Client
}

// NewRedisRefreshTokenStore builds a Redis-backed refresh token store.
func NewRedisRefreshTokenStore(addr, password string) *RedisRefreshTokenStore {
	return &RedisRefreshTokenStore{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
	}
}

// NewToken issues and stores a new refresh token family.
func (s *RedisRefreshTokenStore) NewToken(userID string, ttl time.Duration) (string, error) {
	token, err := generateRefreshToken()
	if err != nil {
		return "", err
	}
	familyID := randomHexID(8)
	hash := refreshTokenHash(token)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, refreshTokenKey(hash), familyID, ttl)
	pipe.HSet(ctx, refreshFamilyKey(familyID), map[string]any{
		"userId":      userID,
		"currentHash": hash,
	})
	pipe.Expire(ctx, refreshFamilyKey(familyID), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", err
	}
	return token, nil
}

// RotateToken validates the token and issues a new one in the same
// family. A superseded token invalidates the whole family.
func (s *RedisRefreshTokenStore) RotateToken(token string, ttl time.Duration) (string, string, error) {
	hash := refreshTokenHash(token)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	familyID, err := s.client.Get(ctx, refreshTokenKey(hash)).Result()
	if err == redis.Nil {
		return "", "", ErrInvalidRefreshToken
	}
	if err != nil {
		return "", "", err
	}

	familyKey := refreshFamilyKey(familyID)
	var userID, newToken string
	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		familyData, err := tx.HGetAll(ctx, familyKey).Result()
		if err != nil {
			return err
		}
		currentHash := familyData["currentHash"]
		userID = familyData["userId"]
		if currentHash == "" || userID == "" {
			return ErrInvalidRefreshToken
		}
		if currentHash != hash {
			return ErrRefreshTokenReplay
		}
		newToken, err = generateRefreshToken()
		if err != nil {
			return err
		}
		newHash := refreshTokenHash(newToken)
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			// The superseded token key stays behind so a replay can be
			// told apart from an unknown token.
			pipe.Expire(ctx, refreshTokenKey(hash), ttl)
			pipe.Set(ctx, refreshTokenKey(newHash), familyID, ttl)
			pipe.HSet(ctx, familyKey, "currentHash", newHash)
			pipe.Expire(ctx, familyKey, ttl)
			return nil
		})
		return err
	}, familyKey)
	if errors.Is(err, ErrRefreshTokenReplay) || errors.Is(err, ErrInvalidRefreshToken) {
		_ = s.dropFamily(ctx, familyID, hash)
		return "", "", err
	}
	if err != nil {
		return "", "", err
	}
	return userID, newToken, nil
}

// DeleteToken removes the token's family (logout).
func (s *RedisRefreshTokenStore) DeleteToken(token string) error {
	hash := refreshTokenHash(token)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	familyID, err := s.client.Get(ctx, refreshTokenKey(hash)).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return err
	}
	return s.dropFamily(ctx, familyID, hash)
}

func (s *RedisRefreshTokenStore) dropFamily(ctx context.Context, familyID, tokenHash string) error {
	familyKey := refreshFamilyKey(familyID)
	currentHash, err := s.client.HGet(ctx, familyKey, "currentHash").Result()
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, refreshTokenKey(tokenHash))
	if err == nil && currentHash != "" {
		pipe.Del(ctx, refreshTokenKey(currentHash))
	}
	pipe.Del(ctx, familyKey)
	_, execErr := pipe.Exec(ctx)
	return execErr
}

func generateRefreshToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func refreshTokenHash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func refreshTokenKey(hash string) string {
	return "devhub:refresh:token:" + hash
}

func refreshFamilyKey(familyID string) string {
	return "devhub:refresh:family:" + familyID
}
