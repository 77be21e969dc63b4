// Package catalog provides the challenge list shown on the home screen.
//
// The built-in official catalog is always available. A non-empty, valid list
// from the backend replaces it; anything else keeps the official list.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"habitrefund/internal/apiclient"
	"habitrefund/internal/cache"
	"habitrefund/internal/features"
	"habitrefund/internal/models"
	"habitrefund/internal/validation"
)

const PathChallenges = "/v1/challenges"

const cacheKey = "challenges"

// Source tells where a listing came from.
type Source string

const (
	SourceOfficial Source = "official"
	SourceServer   Source = "server"
	SourceCache    Source = "cache"
)

var official = []models.Challenge{
	{ID: "walk-7000", Title: "매일 7,000보 걷기", Days: 3, Deposit: 10000, ProofType: models.ProofSteps},
	{ID: "bed-0700", Title: "아침 7시 이불 개기", Days: 3, Deposit: 10000, ProofType: models.ProofPhoto},
	{ID: "lunch-proof", Title: "점심 도시락/샐러드 인증", Days: 3, Deposit: 10000, ProofType: models.ProofPhoto},
}

// Official returns a copy of the built-in catalog.
func Official() []models.Challenge {
	return append([]models.Challenge(nil), official...)
}

// Listing is the effective catalog plus the backend error, if any, for display.
type Listing struct {
	Items  []models.Challenge `json:"items"`
	Source Source             `json:"source"`
	Error  string             `json:"error,omitempty"`
}

// Options configures a Catalog.
type Options struct {
	Cache  cache.Cache
	TTL    time.Duration
	Flags  *features.Manager
	Logger *slog.Logger
}

// Catalog resolves the effective challenge list.
type Catalog struct {
	client *apiclient.Client
	cache  cache.Cache
	ttl    time.Duration
	flags  *features.Manager
	logger *slog.Logger
}

// New creates a catalog. A nil Cache disables caching and a nil Flags
// manager leaves the server override enabled.
func New(client *apiclient.Client, opts Options) *Catalog {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Catalog{
		client: client,
		cache:  opts.Cache,
		ttl:    opts.TTL,
		flags:  opts.Flags,
		logger: opts.Logger,
	}
}

// List returns the effective catalog. It never fails: backend errors are
// reported in Listing.Error next to the official list.
func (c *Catalog) List(ctx context.Context) Listing {
	if c.flags != nil && !c.flags.IsEnabled(features.FeatureChallengeOverride) {
		return Listing{Items: Official(), Source: SourceOfficial}
	}

	if c.cache != nil && c.ttl > 0 {
		var cached []models.Challenge
		err := cache.GetJSON(ctx, c.cache, cacheKey, &cached)
		switch {
		case err == nil && len(cached) > 0:
			return Listing{Items: cached, Source: SourceCache}
		case err != nil && !errors.Is(err, cache.ErrNotFound):
			c.logger.Warn("catalog cache read failed", "error", err)
		}
	}

	resp, err := apiclient.Get[models.ChallengesResponse](ctx, c.client, PathChallenges)
	if err != nil {
		return Listing{Items: Official(), Source: SourceOfficial, Error: err.Error()}
	}
	if resp == nil || len(resp.Items) == 0 {
		return Listing{Items: Official(), Source: SourceOfficial}
	}
	for i, ch := range resp.Items {
		if err := validation.ValidateChallenge(ch); err != nil {
			var vErr *validation.ValidationError
			if errors.As(err, &vErr) {
				err = fmt.Errorf("item %d: %s", i, vErr.Detail())
			}
			c.logger.Warn("ignoring invalid server catalog", "error", err)
			return Listing{Items: Official(), Source: SourceOfficial}
		}
	}

	if c.cache != nil && c.ttl > 0 {
		if err := cache.SetJSON(ctx, c.cache, cacheKey, resp.Items, c.ttl); err != nil {
			c.logger.Warn("catalog cache write failed", "error", err)
		}
	}
	return Listing{Items: resp.Items, Source: SourceServer}
}

// Invalidate drops the cached server list so the next List asks the backend.
func (c *Catalog) Invalidate(ctx context.Context) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Delete(ctx, cacheKey); err != nil {
		c.logger.Warn("catalog cache invalidation failed", "error", err)
	}
}

// Find looks id up in the effective catalog.
func (c *Catalog) Find(ctx context.Context, id string) (models.Challenge, bool) {
	return Lookup(c.List(ctx).Items, id)
}

// Lookup finds id in items.
func Lookup(items []models.Challenge, id string) (models.Challenge, bool) {
	for _, ch := range items {
		if ch.ID == id {
			return ch, true
		}
	}
	return models.Challenge{}, false
}

// FormatKRW renders n with thousands separators and the won suffix.
func FormatKRW(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := false
	if n < 0 {
		neg = true
		s = s[1:]
	}

	out := make([]byte, 0, len(s)+len(s)/3+1)
	for i := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, s[i])
	}
	if neg {
		return "-" + string(out) + "원"
	}
	return string(out) + "원"
}

// Summary is the secondary line of a catalog row.
func Summary(ch models.Challenge) string {
	return fmt.Sprintf("%d일 · 참가비 %s", ch.Days, FormatKRW(ch.Deposit))
}

// DepositLabel is the deposit button caption.
func DepositLabel(ch models.Challenge) string {
	return FormatKRW(ch.Deposit) + " 보증금 맡기기"
}
