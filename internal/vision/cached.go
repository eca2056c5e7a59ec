package vision

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"interiorDesignAi/internal/cache"
	"interiorDesignAi/internal/design"
	"interiorDesignAi/internal/media"
)

// CachedGateway memoizes dimension estimates per image. The credential is
// still checked on every call so a removed key fails even on a cache hit.
type CachedGateway struct {
	Gateway
	credentials Credentials
	cache       cache.Cache
	ttl         time.Duration
	logger      *zap.Logger
}

// NewCachedGateway wraps inner; a nil cache or non-positive ttl disables caching.
func NewCachedGateway(inner Gateway, creds Credentials, c cache.Cache, ttl time.Duration, logger *zap.Logger) Gateway {
	if c == nil || ttl <= 0 {
		return inner
	}
	if creds == nil {
		creds = EnvCredentials{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedGateway{
		Gateway:     inner,
		credentials: creds,
		cache:       c,
		ttl:         ttl,
		logger:      logger,
	}
}

// EstimateDimensions implements Gateway.
func (c *CachedGateway) EstimateDimensions(ctx context.Context, room media.InlineImage) (design.RoomDimensions, error) {
	if _, err := c.credentials.APIKey(); err != nil {
		return design.RoomDimensions{}, err
	}
	key := dimensionKey(room)

	if raw, ok, err := c.cache.Get(ctx, key); err != nil {
		c.logger.Warn("dimension cache read failed", zap.Error(err))
	} else if ok {
		var dims design.RoomDimensions
		if err := json.Unmarshal(raw, &dims); err == nil {
			return dims, nil
		}
	}

	dims, err := c.Gateway.EstimateDimensions(ctx, room)
	if err != nil {
		return design.RoomDimensions{}, err
	}
	if raw, err := json.Marshal(dims); err == nil {
		if err := c.cache.Set(ctx, key, raw, c.ttl); err != nil {
			c.logger.Warn("dimension cache write failed", zap.Error(err))
		}
	}
	return dims, nil
}

func dimensionKey(img media.InlineImage) string {
	sum := sha256.Sum256([]byte(img.MIMEType + ":" + img.Data))
	return "dims:" + hex.EncodeToString(sum[:])
}
