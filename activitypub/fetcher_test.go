package activitypub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/glade-social/glade/models"
	"github.com/go-json-experiment/json"
	"github.com/stretchr/testify/require"
)

func actorDocFor(serverURL string) map[string]any {
	return map[string]any{
		"id":                serverURL + "/users/bob",
		"type":              "Person",
		"preferredUsername": "bob",
		"name":              "Bob",
		"inbox":             serverURL + "/users/bob/inbox",
		"outbox":            serverURL + "/users/bob/outbox",
		"endpoints": map[string]any{
			"sharedInbox": serverURL + "/inbox",
		},
		"publicKey": map[string]any{
			"id":           serverURL + "/users/bob#main-key",
			"publicKeyPem": "-----BEGIN PUBLIC KEY-----\n-----END PUBLIC KEY-----\n",
		},
	}
}

func TestRemoteActorFetcher(t *testing.T) {
	db := setupTestDB(t)

	t.Run("network fetch upserts and caches", func(t *testing.T) {
		require := require.New(t)
		tx := db.Begin()
		defer tx.Rollback()

		mux := http.NewServeMux()
		server := httptest.NewServer(mux)
		defer server.Close()

		var hits int
		mux.HandleFunc("/users/bob", func(w http.ResponseWriter, r *http.Request) {
			hits++
			w.Header().Set("Content-Type", "application/activity+json")
			json.MarshalFull(w, actorDocFor("https://peer.example"))
		})
		mux.HandleFunc("/.well-known/nodeinfo", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.MarshalFull(w, map[string]any{
				"links": []any{
					map[string]any{"href": server.URL + "/nodeinfo/2.0"},
				},
			})
		})
		mux.HandleFunc("/nodeinfo/2.0", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.MarshalFull(w, map[string]any{
				"software": map[string]any{"name": "glade", "version": "1.2.3"},
			})
		})

		fetcher := NewRemoteActorFetcher(tx, models.DefaultConfig("glade.example"))
		actor, err := fetcher.Refresh(context.Background(), server.URL+"/users/bob", nil)
		require.NoError(err)
		require.Equal("bob", actor.Username)
		require.Equal("peer.example", actor.Domain)
		require.Equal("https://peer.example/inbox", actor.SharedInboxURL)
		require.Equal(1, hits)

		// second resolve is served from the cache
		again, err := fetcher.Fetch(context.Background(), "https://peer.example/users/bob", nil)
		require.NoError(err)
		require.Equal(actor.ID, again.ID)
		require.Equal(1, hits)

		// the instance row was created as a side effect, with the peer's
		// nodeinfo software recorded
		instance, err := models.NewRemoteInstances(tx).Find("peer.example")
		require.NoError(err)
		require.Equal(1, instance.UserCount)
		require.Equal("glade 1.2.3", instance.Software)
	})

	t.Run("database beats the network", func(t *testing.T) {
		require := require.New(t)
		tx := db.Begin()
		defer tx.Rollback()

		bob := mockRemoteUser(t, tx, "bob", "peer.example")
		fetcher := NewRemoteActorFetcher(tx, models.DefaultConfig("glade.example"))
		actor, err := fetcher.Fetch(context.Background(), bob.ActorURI, nil)
		require.NoError(err)
		require.Equal(bob.ID, actor.ID)
	})

	t.Run("authorized fetch retries signed on 401", func(t *testing.T) {
		require := require.New(t)
		tx := db.Begin()
		defer tx.Rollback()

		alice := mockUser(t, tx, "alice", "glade.example")

		// the peer answers the actor document only; its nodeinfo 404s
		mux := http.NewServeMux()
		server := httptest.NewServer(mux)
		defer server.Close()

		var unsigned, signed int
		mux.HandleFunc("/users/bob", func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Signature") == "" {
				unsigned++
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			signed++
			w.Header().Set("Content-Type", "application/activity+json")
			json.MarshalFull(w, actorDocFor("https://peer.example"))
		})

		fetcher := NewRemoteActorFetcher(tx, models.DefaultConfig("glade.example"))
		actor, err := fetcher.Refresh(context.Background(), server.URL+"/users/bob", alice)
		require.NoError(err)
		require.Equal("bob", actor.Username)
		require.Equal(1, unsigned)
		require.Equal(1, signed)
	})

	t.Run("401 without a signing user fails", func(t *testing.T) {
		require := require.New(t)
		tx := db.Begin()
		defer tx.Rollback()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		fetcher := NewRemoteActorFetcher(tx, models.DefaultConfig("glade.example"))
		_, err := fetcher.Refresh(context.Background(), server.URL+"/users/bob", nil)
		require.Error(err)
	})
}

func TestFetchPosts(t *testing.T) {
	db := setupTestDB(t)

	t.Run("stores one page of notes and skips malformed items", func(t *testing.T) {
		require := require.New(t)
		tx := db.Begin()
		defer tx.Rollback()

		mux := http.NewServeMux()
		server := httptest.NewServer(mux)
		defer server.Close()

		items := []any{
			map[string]any{
				"type": "Create",
				"object": map[string]any{
					"id":        "https://peer.example/notes/1",
					"type":      "Note",
					"content":   "first",
					"published": "2023-04-01T10:00:00Z",
				},
			},
			// announce in the outbox, not a note of bob's
			map[string]any{
				"type":   "Announce",
				"object": "https://other.example/notes/9",
			},
			// note without an id
			map[string]any{
				"type":   "Create",
				"object": map[string]any{"type": "Note", "content": "no id"},
			},
			map[string]any{
				"type": "Create",
				"object": map[string]any{
					"id":      "https://peer.example/notes/2",
					"type":    "Note",
					"content": "second",
				},
			},
		}
		mux.HandleFunc("/users/bob/outbox", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/activity+json")
			json.MarshalFull(w, map[string]any{
				"type":  "OrderedCollection",
				"first": server.URL + "/users/bob/outbox/page1",
			})
		})
		mux.HandleFunc("/users/bob/outbox/page1", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/activity+json")
			json.MarshalFull(w, map[string]any{
				"type":         "OrderedCollectionPage",
				"orderedItems": items,
			})
		})

		bob := mockRemoteUser(t, tx, "bob", "peer.example")
		require.NoError(tx.Model(bob).Update("outbox_url", server.URL+"/users/bob/outbox").Error)
		bob.OutboxURL = server.URL + "/users/bob/outbox"

		fetcher := NewRemoteActorFetcher(tx, models.DefaultConfig("glade.example"))
		n, err := fetcher.FetchPosts(context.Background(), bob, nil)
		require.NoError(err)
		require.Equal(2, n)

		stored, err := models.NewRemotePosts(tx).ForRemoteUser(bob.ID, 10)
		require.NoError(err)
		require.Len(stored, 2)
	})

	t.Run("actor without an outbox stores nothing", func(t *testing.T) {
		require := require.New(t)
		tx := db.Begin()
		defer tx.Rollback()

		bob := mockRemoteUser(t, tx, "bob", "peer.example")
		fetcher := NewRemoteActorFetcher(tx, models.DefaultConfig("glade.example"))
		n, err := fetcher.FetchPosts(context.Background(), bob, nil)
		require.NoError(err)
		require.Equal(0, n)
	})
}
