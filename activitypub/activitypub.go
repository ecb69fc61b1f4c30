// Package activitypub implements the federation core: the inbox state
// machine, remote entity fetching, outbound delivery fan-out, and the
// JSON-LD documents peers exchange.
package activitypub

import (
	"context"
	stdcrypto "crypto"
	"net/url"
	"time"

	"github.com/glade-social/glade/internal/crypto"
	"github.com/glade-social/glade/models"
)

// Env is the environment handed to the federation HTTP handlers.
type Env struct {
	*models.Env
	Fetcher ActorFetcher
	Queue   DeliveryQueue
}

// GetKey resolves a signature keyId to the public key of the actor that
// owns it, fetching and caching the remote actor if necessary. Local
// keyIds resolve against the local directory without any network I/O.
func (e *Env) GetKey(ctx context.Context, keyID string) (stdcrypto.PublicKey, error) {
	uri := trimKeyID(keyID)
	if user, err := models.NewUsers(e.DB).FindByURI(uri); err == nil {
		return crypto.ParseRSAPublicKey(user.PublicKey)
	}
	remote, err := e.Fetcher.Fetch(ctx, uri, nil)
	if err != nil {
		return nil, err
	}
	return crypto.ParseRSAPublicKey(remote.PublicKey)
}

// urlHost returns the host component of uri.
func urlHost(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", err
	}
	return u.Host, nil
}

// trimKeyID removes the #main-key style fragment from a key id.
func trimKeyID(id string) string {
	u, err := url.Parse(id)
	if err != nil {
		return id
	}
	u.Fragment = ""
	return u.String()
}

func stringFromAny(v any) string {
	s, _ := v.(string)
	return s
}

func boolFromAny(v any) bool {
	b, _ := v.(bool)
	return b
}

func mapFromAny(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func anyToSlice(v any) []any {
	switch v := v.(type) {
	case []any:
		return v
	default:
		return nil
	}
}

// stringsFromAny flattens a to/cc style field, which may be a single
// string or a list of strings.
func stringsFromAny(v any) []string {
	switch v := v.(type) {
	case string:
		return []string{v}
	case []any:
		var out []string
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func timeFromAnyOrZero(v any) time.Time {
	switch v := v.(type) {
	case string:
		t, _ := time.Parse(time.RFC3339, v)
		return t
	case time.Time:
		return v
	default:
		return time.Time{}
	}
}

func floatFromAny(v any) float64 {
	switch v := v.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}
