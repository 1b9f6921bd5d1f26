package main

import (
	"testing"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/config"
)

func TestJobTimeoutStaysUnderLease(t *testing.T) {
	cases := []struct {
		name string
		cfg  config.CronConfig
		want time.Duration
	}{
		{"unset", config.CronConfig{LockTTL: 10 * time.Minute}, 5 * time.Minute},
		{"explicit", config.CronConfig{LockTTL: 10 * time.Minute, JobTimeout: 2 * time.Minute}, 2 * time.Minute},
		{"longer than lease", config.CronConfig{LockTTL: 10 * time.Minute, JobTimeout: 20 * time.Minute}, 5 * time.Minute},
	}
	for _, tc := range cases {
		if got := jobTimeout(tc.cfg); got != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.want, got)
		}
	}
}
