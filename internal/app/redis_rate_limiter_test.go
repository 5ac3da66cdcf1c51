package app

import (
	"context"
	"testing"
	"time"
)

func TestParseRateLimitReply(t *testing.T) {
	tests := []struct {
		name           string
		raw            interface{}
		windowMs       int64
		wantCount      int
		wantRetryAfter int
		wantErr        bool
	}{
		{
			name:           "decodes count and ttl",
			raw:            []interface{}{int64(3), int64(45000)},
			windowMs:       60000,
			wantCount:      3,
			wantRetryAfter: 45,
		},
		{
			name:           "rounds partial seconds up",
			raw:            []interface{}{int64(1), int64(1500)},
			windowMs:       60000,
			wantCount:      1,
			wantRetryAfter: 2,
		},
		{
			name:           "negative ttl falls back to the window",
			raw:            []interface{}{int64(5), int64(-1)},
			windowMs:       60000,
			wantCount:      5,
			wantRetryAfter: 60,
		},
		{
			name:           "zero ttl reports at least one second",
			raw:            []interface{}{int64(2), int64(0)},
			windowMs:       60000,
			wantCount:      2,
			wantRetryAfter: 1,
		},
		{
			name:     "rejects wrong shape",
			raw:      []interface{}{int64(1)},
			windowMs: 60000,
			wantErr:  true,
		},
		{
			name:     "rejects non-slice reply",
			raw:      "OK",
			windowMs: 60000,
			wantErr:  true,
		},
		{
			name:     "rejects non-integer count",
			raw:      []interface{}{"3", int64(1000)},
			windowMs: 60000,
			wantErr:  true,
		},
		{
			name:     "rejects non-integer ttl",
			raw:      []interface{}{int64(3), "1000"},
			windowMs: 60000,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			count, retryAfter, err := parseRateLimitReply(tt.raw, tt.windowMs)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got count=%d retry_after=%d", count, retryAfter)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if count != tt.wantCount {
				t.Fatalf("expected count %d, got %d", tt.wantCount, count)
			}
			if retryAfter != tt.wantRetryAfter {
				t.Fatalf("expected retry-after %d, got %d", tt.wantRetryAfter, retryAfter)
			}
		})
	}
}

func TestRedisPinRateLimiterDisabledConfigurations(t *testing.T) {
	// A nil client, a non-positive limit, or a blank subject all no-op
	// instead of reaching Redis.
	limiter := NewRedisPinRateLimiter(nil, "")
	count, retryAfter, err := limiter.ConsumeRateLimit(context.Background(), "pin_auth", "USER001", 10, time.Minute)
	if err != nil || count != 0 || retryAfter != 0 {
		t.Fatalf("expected nil-client no-op, got count=%d retry_after=%d err=%v", count, retryAfter, err)
	}
}

func TestNewRedisPinRateLimiterPrefixNormalization(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "default when empty", input: "", want: "teller:rate_limit"},
		{name: "default when blank", input: "   ", want: "teller:rate_limit"},
		{name: "trims trailing colon", input: "custom:prefix:", want: "custom:prefix"},
		{name: "keeps clean prefix", input: "custom:prefix", want: "custom:prefix"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiter := NewRedisPinRateLimiter(nil, tt.input)
			if limiter.prefix != tt.want {
				t.Fatalf("expected prefix %q, got %q", tt.want, limiter.prefix)
			}
		})
	}
}
