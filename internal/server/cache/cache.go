// Package cache is a best-effort side channel for read-mostly listings.
// It is never authoritative: callers treat every error as a miss.
package cache

import (
	"context"
	"time"
)

type Cache interface {
	// Get decodes the value under key into dest and reports whether it was found.
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, v any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

const prefix = "sealbox:"

func DashboardKey(userID string) string { return prefix + "dashboard:" + userID }

func UserLogsKey(userID string) string { return prefix + "logs:" + userID }

func AllLogsKey() string { return prefix + "all-logs" }

// NopCache never stores anything.
type NopCache struct{}

func (NopCache) Get(context.Context, string, any) (bool, error)         { return false, nil }
func (NopCache) Set(context.Context, string, any, time.Duration) error { return nil }
func (NopCache) Delete(context.Context, ...string) error               { return nil }
func (NopCache) Close() error                                          { return nil }
