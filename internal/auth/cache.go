package auth

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const cacheFile = "auth_cache.json"

// ExpiringToken is an OAuth token pair with an absolute expiry, in
// epoch seconds. The refresh token usually outlives the access token.
type ExpiringToken struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresAt    int64  `json:"expiresAt"`
}

// Expired reports whether the token's expiry has passed. The boundary
// instant itself is still valid.
func (t ExpiringToken) Expired(now int64) bool {
	return t.ExpiresAt < now
}

// Record is one cached login: the Minecraft session token, its expiry, the
// MSA token pair used to refresh it, and the resolved profile. Records are
// replaced wholesale, never mutated field by field from outside this package.
type Record struct {
	AccessToken string        `json:"accessToken"`
	Expiration  int64         `json:"expiration"`
	MSA         ExpiringToken `json:"msa"`
	Profile     Profile       `json:"profile"`
}

// Expired reports whether the session token has expired. The MSA refresh
// material may still be valid independently.
func (r Record) Expired(now int64) bool {
	return r.Expiration < now
}

// Cache maps caller-chosen login keys to cached credential records.
// Callers serialize access through the store lock that owns the cache;
// Cache itself performs no locking.
type Cache struct {
	Records map[string]Record

	logger *zap.Logger
}

func NewCache(logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		Records: make(map[string]Record),
		logger:  logger,
	}
}

// LoadCache reads the cache file from the data dir. A missing file is created
// empty; malformed content degrades to an empty in-memory cache. Never fatal.
func LoadCache(dir string, logger *zap.Logger) *Cache {
	c := NewCache(logger)
	path := filepath.Join(dir, cacheFile)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.WriteFile(path, []byte("{}"), 0600); err != nil {
			c.logger.Warn("failed to initialise auth cache file", zap.String("path", path), zap.Error(err))
		}
		return c
	}
	data, err := os.ReadFile(path)
	if err != nil {
		c.logger.Warn("failed to read auth cache, starting empty", zap.String("path", path), zap.Error(err))
		return c
	}
	if err := json.Unmarshal(data, &c.Records); err != nil {
		c.logger.Error("failed to parse auth cache, starting empty", zap.String("path", path), zap.Error(err))
		c.Records = make(map[string]Record)
		return c
	}
	keys := make([]string, 0, len(c.Records))
	for k := range c.Records {
		keys = append(keys, k)
	}
	c.logger.Info("loaded auth cache", zap.Int("accounts", len(c.Records)), zap.Strings("keys", keys))
	return c
}

// Save rewrites the whole cache file. Must be called after any mutation that
// should survive a restart. A failed write leaves the in-memory state intact.
func (c *Cache) Save(dir string) error {
	data, err := json.MarshalIndent(c.Records, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(dir, cacheFile)
	if err := os.WriteFile(path, data, 0600); err != nil {
		c.logger.Warn("failed to write auth cache", zap.String("path", path), zap.Error(err))
		return err
	}
	return nil
}

// FindByProfileUUID returns the first record whose profile matches the given
// in-game UUID. Which record wins is undefined if multiple login keys point
// at the same profile.
func (c *Cache) FindByProfileUUID(id uuid.UUID) (Record, bool) {
	for _, rec := range c.Records {
		if rec.Profile.UUID == id {
			return rec, true
		}
	}
	return Record{}, false
}

// FindKeyByProfileUUID is FindByProfileUUID but returns the login key.
func (c *Cache) FindKeyByProfileUUID(id uuid.UUID) (string, bool) {
	for key, rec := range c.Records {
		if rec.Profile.UUID == id {
			return key, true
		}
	}
	return "", false
}
