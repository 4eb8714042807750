package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"testing"

	"github.com/nao1215/skycrawl/internal/xrpc"
)

func TestParseFailurePolicy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    FailurePolicy
		wantErr bool
	}{
		{input: "", want: FailAbort},
		{input: "abort", want: FailAbort},
		{input: "Retry", want: FailRetry},
		{input: " skip ", want: FailSkip},
		{input: "ignore", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			got, err := ParseFailurePolicy(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidFailurePolicy) {
					t.Errorf("expected ErrInvalidFailurePolicy, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
			if tt.input != "" {
				if roundTrip, _ := ParseFailurePolicy(got.String()); roundTrip != got {
					t.Errorf("String() %q does not parse back", got.String())
				}
			}
		})
	}
}

func TestIsTransient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "transient", err: transientErr{retry: true}, want: true},
		{name: "permanent", err: transientErr{retry: false}, want: false},
		{name: "wrapped permanent", err: fmt.Errorf("call: %w", transientErr{retry: false}), want: false},
		{name: "canceled", err: context.Canceled, want: false},
		{name: "deadline", err: fmt.Errorf("call: %w", context.DeadlineExceeded), want: false},
		{name: "unclassified", err: errBoom, want: false},
		{name: "network", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, want: true},
		{name: "wrapped network", err: fmt.Errorf("call: %w", &url.Error{Op: "Get", URL: "https://pds.test", Err: io.ErrUnexpectedEOF}), want: true},
		{name: "undecodable response", err: &xrpc.DecodeError{Method: "app.bsky.graph.getFollows", Err: io.ErrUnexpectedEOF}, want: false},
		{name: "rate limited", err: &xrpc.Error{Method: "app.bsky.graph.getFollows", Status: 429}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := isTransient(tt.err); got != tt.want {
				t.Errorf("isTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "page size zero", mutate: func(c *Config) { c.PageSize = 0 }, wantErr: ErrInvalidPageSize},
		{name: "page size too large", mutate: func(c *Config) { c.PageSize = 101 }, wantErr: ErrInvalidPageSize},
		{name: "queue capacity", mutate: func(c *Config) { c.QueueCapacity = 0 }, wantErr: ErrInvalidQueueCapacity},
		{name: "negative distance", mutate: func(c *Config) { c.MaxExpandDistance = -1 }, wantErr: ErrInvalidExpandDistance},
		{name: "concurrency", mutate: func(c *Config) { c.Concurrency = 0 }, wantErr: ErrInvalidConcurrency},
		{name: "retries", mutate: func(c *Config) { c.Retry.MaxRetries = -1 }, wantErr: ErrInvalidRetries},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	if cfg.MaxExpandDistance != 1 {
		t.Errorf("the default crawl must expand exactly two levels, got MaxExpandDistance=%d", cfg.MaxExpandDistance)
	}
	if cfg.QueueCapacity != 100 {
		t.Errorf("expected queue capacity 100, got %d", cfg.QueueCapacity)
	}
	if cfg.PageSize != 100 {
		t.Errorf("expected page size 100, got %d", cfg.PageSize)
	}
	if cfg.FailurePolicy != FailAbort {
		t.Errorf("expected abort policy, got %v", cfg.FailurePolicy)
	}
}
