// Package creds resolves and caches the destination-domain credentials. The
// destination partition cannot assume roles across the boundary, so the
// worker authenticates with a static access key pair fetched from a secret
// store once per process.
package creds

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Credentials is the destination credential scope: an access key pair plus
// the destination region. Read-only after first resolution.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
}

// Source fetches the raw secret payload. Implemented by SecretsManagerSource
// in production and by fakes in tests.
type Source interface {
	Fetch(ctx context.Context) (string, error)
}

// secretPayload is the expected secret shape.
type secretPayload struct {
	AccessKey       string `json:"accesskey"`
	SecretAccessKey string `json:"secretaccesskey"`
}

// Broker resolves destination credentials at most once per process.
//
// The first successful resolution is cached for the process lifetime.
// Concurrent callers before that share a single fetch: the broker holds its
// lock across the fetch, so waiters observe the winner's result instead of
// issuing their own. A failed resolution is returned to its callers but not
// cached; the next call starts over.
type Broker struct {
	src    Source
	region string

	mu    sync.Mutex
	done  bool
	creds Credentials
}

// NewBroker creates a broker resolving from src, stamping the given
// destination region into the resolved credentials.
func NewBroker(src Source, region string) *Broker {
	return &Broker{src: src, region: region}
}

// Resolve returns the destination credentials, fetching them on first use.
// Fetch and decode failures propagate uncaught; the broker never retries.
func (b *Broker) Resolve(ctx context.Context) (Credentials, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.done {
		return b.creds, nil
	}

	payload, err := b.src.Fetch(ctx)
	if err != nil {
		return Credentials{}, fmt.Errorf("fetch destination secret: %w", err)
	}

	var secret secretPayload
	if err := json.Unmarshal([]byte(payload), &secret); err != nil {
		return Credentials{}, fmt.Errorf("decode destination secret: %w", err)
	}
	if secret.AccessKey == "" || secret.SecretAccessKey == "" {
		return Credentials{}, fmt.Errorf("destination secret missing accesskey or secretaccesskey")
	}

	b.creds = Credentials{
		AccessKeyID:     secret.AccessKey,
		SecretAccessKey: secret.SecretAccessKey,
		Region:          b.region,
	}
	b.done = true
	return b.creds, nil
}
