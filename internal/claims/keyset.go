package claims

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

const minRefreshInterval = 15 * time.Minute

// JWKSKeySet serves verification keys from a remote JWKS document, cached and refreshed in the background
type JWKSKeySet struct {
	cache *jwk.Cache
	url   string
}

// NewJWKSKeySet registers url with a key cache bound to ctx.
// Nothing is fetched until the first lookup.
func NewJWKSKeySet(ctx context.Context, url string, client *http.Client) (*JWKSKeySet, error) {
	cache := jwk.NewCache(ctx)

	opts := []jwk.RegisterOption{jwk.WithMinRefreshInterval(minRefreshInterval)}
	if client != nil {
		opts = append(opts, jwk.WithHTTPClient(client))
	}
	if err := cache.Register(url, opts...); err != nil {
		return nil, fmt.Errorf("registering jwks url: %w", err)
	}

	return &JWKSKeySet{cache: cache, url: url}, nil
}

// Key returns the raw public key for kid, refreshing once on a miss to pick up rotated keys
func (s *JWKSKeySet) Key(ctx context.Context, kid string) (any, error) {
	set, err := s.cache.Get(ctx, s.url)
	if err != nil {
		return nil, fmt.Errorf("fetching jwks: %w", err)
	}

	key, ok := set.LookupKeyID(kid)
	if !ok {
		if set, err = s.cache.Refresh(ctx, s.url); err != nil {
			return nil, fmt.Errorf("refreshing jwks: %w", err)
		}
		if key, ok = set.LookupKeyID(kid); !ok {
			return nil, fmt.Errorf("no key with id %q", kid)
		}
	}

	var raw any
	if err := key.Raw(&raw); err != nil {
		return nil, fmt.Errorf("decoding key %q: %w", kid, err)
	}
	return raw, nil
}
