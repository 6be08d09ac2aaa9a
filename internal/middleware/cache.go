package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iliyamo/doctors-appointment/internal/config"
)

// captureWriter captures response body/status while forwarding to the client.
// Once more than limit bytes were written the capture is marked overflowed
// and the response is not cached.
type captureWriter struct {
	http.ResponseWriter
	status     int
	buf        bytes.Buffer
	limit      int64
	overflowed bool
}

func (cw *captureWriter) WriteHeader(code int) {
	cw.status = code
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
	if !cw.overflowed {
		if cw.limit > 0 && int64(cw.buf.Len()+len(b)) > cw.limit {
			cw.overflowed = true
			cw.buf.Reset()
		} else {
			cw.buf.Write(b)
		}
	}
	return cw.ResponseWriter.Write(b)
}

// ResponseCache stores whole GET responses in Redis.  Keys are laid out as
// <prefix>:route:<route pattern>:<digest> so every cached variant of a
// route can be dropped at once with Invalidate after a write changes what
// the route would answer.
type ResponseCache struct {
	cfg config.CacheConfig
	rdb *redis.Client
	log zerolog.Logger
}

// NewResponseCache returns a cache.  A nil client or a disabled config
// yields a cache whose middleware passes through and whose Invalidate is a
// no-op.
func NewResponseCache(cfg config.CacheConfig, rdb *redis.Client, log zerolog.Logger) *ResponseCache {
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Second
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "cache"
	}
	return &ResponseCache{cfg: cfg, rdb: rdb, log: log}
}

func (rc *ResponseCache) active() bool {
	return rc != nil && rc.cfg.Enabled && rc.rdb != nil
}

func (rc *ResponseCache) routePattern(route string) string {
	return rc.cfg.Prefix + ":route:" + route + ":*"
}

func (rc *ResponseCache) genKey(route string) string {
	return rc.cfg.Prefix + ":gen:" + route
}

// generation returns the current invalidation generation of route.  A
// route that was never invalidated is at generation 0.
func (rc *ResponseCache) generation(ctx context.Context, route string) (int64, error) {
	n, err := rc.rdb.Get(ctx, rc.genKey(route)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}

// key builds a stable cache key honoring the key strategy.  The route's
// generation is part of the key, so a response computed before an
// Invalidate is stored under a key no later reader looks up.
func (rc *ResponseCache) key(c echo.Context, gen int64) string {
	r := c.Request()
	var tail string
	switch strings.ToLower(rc.cfg.KeyStrategy) {
	case "route":
		tail = r.Method
	default: // "route_query"
		tail = r.Method + "?" + r.URL.Query().Encode()
	}
	sum := sha1.Sum([]byte(tail))
	return fmt.Sprintf("%s:route:%s:g%d:%x", rc.cfg.Prefix, c.Path(), gen, sum[:])
}

// Middleware serves cached responses and records fresh 200 responses.
func (rc *ResponseCache) Middleware() echo.MiddlewareFunc {
	if !rc.active() {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	maxBody := int64(rc.cfg.MaxBodyBytes)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !rc.cfg.Methods[strings.ToUpper(c.Request().Method)] {
				return next(c)
			}

			ctx := c.Request().Context()
			gen, err := rc.generation(ctx, c.Path())
			if err != nil {
				rc.log.Warn().Err(err).Str("route", c.Path()).Msg("cache: generation read failed")
				return next(c)
			}
			key := rc.key(c, gen)

			if bs, err := rc.rdb.Get(ctx, key).Bytes(); err == nil {
				if status, hdr, body, ok := decodePayload(bs); ok {
					for k, vals := range hdr {
						if strings.EqualFold(k, echo.HeaderContentLength) {
							continue
						}
						for _, v := range vals {
							c.Response().Header().Add(k, v)
						}
					}
					c.Response().Header().Set("X-Cache", "HIT")
					c.Response().WriteHeader(status)
					if len(body) > 0 {
						_, _ = c.Response().Write(body)
					}
					return nil
				}
			} else if err != redis.Nil {
				rc.log.Warn().Err(err).Str("key", key).Msg("cache: read failed")
			}

			cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: maxBody}
			c.Response().Writer = cw
			c.Response().Header().Set("X-Cache", "MISS")

			if err := next(c); err != nil {
				return err
			}

			if cw.status != http.StatusOK || cw.overflowed {
				return nil
			}
			hdr := c.Response().Header().Clone()
			hdr.Del("X-Cache")
			payload, err := encodePayload(cw.status, hdr, cw.buf.Bytes())
			if err != nil {
				return nil
			}
			if err := rc.rdb.Set(context.WithoutCancel(ctx), key, payload, rc.cfg.TTL).Err(); err != nil {
				rc.log.Warn().Err(err).Str("key", key).Msg("cache: write failed")
			}
			return nil
		}
	}
}

// Invalidate deletes every cached response of the given route patterns
// (as registered with Echo, e.g. "/appointmentOptions").
func (rc *ResponseCache) Invalidate(ctx context.Context, routes ...string) error {
	if !rc.active() {
		return nil
	}
	for _, route := range routes {
		// Bump the generation first: responses still being computed from
		// the old state will land under the old generation's keys.
		if err := rc.rdb.Incr(ctx, rc.genKey(route)).Err(); err != nil {
			return fmt.Errorf("bump %s: %w", route, err)
		}
		iter := rc.rdb.Scan(ctx, 0, rc.routePattern(route), 100).Iterator()
		var keys []string
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			return fmt.Errorf("scan %s: %w", route, err)
		}
		if len(keys) == 0 {
			continue
		}
		if err := rc.rdb.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("delete %s: %w", route, err)
		}
	}
	return nil
}

// encodePayload packs: [4 bytes status][4 bytes headerLen][headerJSON][body]
func encodePayload(status int, header http.Header, body []byte) ([]byte, error) {
	hdrJSON, err := json.Marshal(header)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 8+len(hdrJSON)+len(body))
	binary.BigEndian.PutUint32(out[0:4], uint32(status))
	binary.BigEndian.PutUint32(out[4:8], uint32(len(hdrJSON)))
	copy(out[8:8+len(hdrJSON)], hdrJSON)
	copy(out[8+len(hdrJSON):], body)
	return out, nil
}

func decodePayload(bs []byte) (status int, header http.Header, body []byte, ok bool) {
	if len(bs) < 8 {
		return 0, nil, nil, false
	}
	status = int(binary.BigEndian.Uint32(bs[0:4]))
	hlen := int(binary.BigEndian.Uint32(bs[4:8]))
	if hlen < 0 || 8+hlen > len(bs) {
		return 0, nil, nil, false
	}
	header = make(http.Header)
	if hlen > 0 {
		if err := json.Unmarshal(bs[8:8+hlen], &header); err != nil {
			return 0, nil, nil, false
		}
	}
	return status, header, bs[8+hlen:], true
}
