package activitypub

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/carlmjohnson/requests"
	"github.com/glade-social/glade/internal/cache"
	"github.com/glade-social/glade/models"
	"gorm.io/gorm"
)

// ActorFetcher resolves actor URIs to cached remote profiles. signAs is
// the local account used to sign the request when the peer requires
// authorized fetch; nil means unsigned only.
type ActorFetcher interface {
	Fetch(ctx context.Context, uri string, signAs *models.User) (*models.RemoteUser, error)
	FetchPosts(ctx context.Context, actor *models.RemoteUser, signAs *models.User) (int, error)
}

// RemoteActorFetcher resolves actors through three layers: an in-process
// TTL cache, the remote_users table, and finally the network.
type RemoteActorFetcher struct {
	db      *gorm.DB
	cache   *cache.Cache[*models.RemoteUser]
	timeout time.Duration
}

func NewRemoteActorFetcher(db *gorm.DB, config models.Config) *RemoteActorFetcher {
	return &RemoteActorFetcher{
		db:      db,
		cache:   cache.New[*models.RemoteUser](config.ActorCacheTTL),
		timeout: config.FetchTimeout,
	}
}

func (f *RemoteActorFetcher) Fetch(ctx context.Context, uri string, signAs *models.User) (*models.RemoteUser, error) {
	if actor, ok := f.cache.Get(uri); ok {
		return actor, nil
	}
	if actor, err := models.NewRemoteUsers(f.db).FindByURI(uri); err == nil {
		f.cache.Set(uri, actor)
		return actor, nil
	}
	return f.Refresh(ctx, uri, signAs)
}

// Refresh fetches the actor document from the network, bypassing the
// cache layers, and upserts the result.
func (f *RemoteActorFetcher) Refresh(ctx context.Context, uri string, signAs *models.User) (*models.RemoteUser, error) {
	obj, err := f.get(ctx, uri, signAs)
	if err != nil {
		return nil, fmt.Errorf("fetch actor %s: %w", uri, err)
	}
	actor, err := actorFromMap(obj)
	if err != nil {
		return nil, fmt.Errorf("fetch actor %s: %w", uri, err)
	}
	actor, err = models.NewRemoteUsers(f.db).Upsert(actor)
	if err != nil {
		return nil, err
	}

	// the first actor seen from a domain triggers a nodeinfo lookup so
	// the instance row records what the peer runs
	instances := models.NewRemoteInstances(f.db)
	if instance, err := instances.Find(actor.Domain); err == nil && instance.Software == "" {
		if software := f.peerSoftware(ctx, uri); software != "" {
			if err := instances.SetSoftware(instance, software); err != nil {
				return nil, err
			}
		}
	}

	f.cache.Set(uri, actor)
	return actor, nil
}

// peerSoftware asks the peer's nodeinfo endpoint what software it runs,
// resolving the well-known index to its first document link. The result
// is informational and untrusted; any failure reads as unknown.
func (f *RemoteActorFetcher) peerSoftware(ctx context.Context, actorURI string) string {
	u, err := url.Parse(actorURI)
	if err != nil {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	var index struct {
		Links []struct {
			Href string `json:"href"`
		} `json:"links"`
	}
	err = (&Client{}).Fetch(ctx, u.Scheme+"://"+u.Host+"/.well-known/nodeinfo", &index)
	if err != nil || len(index.Links) == 0 || index.Links[0].Href == "" {
		return ""
	}
	var doc struct {
		Software struct {
			Name    string `json:"name"`
			Version string `json:"version"`
		} `json:"software"`
	}
	if err := (&Client{}).Fetch(ctx, index.Links[0].Href, &doc); err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Software.Name + " " + doc.Software.Version)
}

// FetchPosts backfills one page of the actor's outbox, up to twenty
// notes. Malformed items are skipped; the count of stored notes is
// returned.
func (f *RemoteActorFetcher) FetchPosts(ctx context.Context, actor *models.RemoteUser, signAs *models.User) (int, error) {
	if actor.OutboxURL == "" {
		return 0, nil
	}
	outbox, err := f.get(ctx, actor.OutboxURL, signAs)
	if err != nil {
		return 0, fmt.Errorf("fetch outbox %s: %w", actor.OutboxURL, err)
	}
	items := anyToSlice(outbox["orderedItems"])
	if items == nil {
		first := objectURI(outbox["first"])
		if first == "" {
			return 0, nil
		}
		page, err := f.get(ctx, first, signAs)
		if err != nil {
			return 0, fmt.Errorf("fetch outbox page %s: %w", first, err)
		}
		items = anyToSlice(page["orderedItems"])
	}

	posts := models.NewRemotePosts(f.db)
	var stored int
	for _, item := range items {
		if stored == 20 {
			break
		}
		obj := mapFromAny(item)
		if stringFromAny(obj["type"]) != "Create" {
			continue
		}
		note := noteFromAny(obj["object"])
		if note == nil || note.ID == "" {
			continue
		}
		published := note.Published
		if published.IsZero() {
			published = time.Now()
		}
		err := posts.Upsert(&models.RemotePost{
			ObjectURI:    note.ID,
			RemoteUserID: actor.ID,
			Content:      note.Content,
			Summary:      note.Summary,
			InReplyTo:    note.InReplyTo,
			Published:    published,
			FetchedAt:    time.Now(),
		})
		if err != nil {
			return stored, err
		}
		stored++
	}
	return stored, nil
}

// get fetches uri as an untyped document. The first attempt is unsigned;
// a 401 or 403 is retried signed as signAs, for peers that require
// authorized fetch.
func (f *RemoteActorFetcher) get(ctx context.Context, uri string, signAs *models.User) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	var obj map[string]any
	err := (&Client{}).Fetch(ctx, uri, &obj)
	if err == nil {
		return obj, nil
	}
	if signAs == nil || !requests.HasStatusErr(err, 401, 403) {
		return nil, err
	}
	client, cerr := NewClient(signAs)
	if cerr != nil {
		return nil, cerr
	}
	if err := client.Fetch(ctx, uri, &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

func actorFromMap(obj map[string]any) (*models.RemoteUser, error) {
	id := stringFromAny(obj["id"])
	u, err := url.Parse(id)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("actor document has no usable id")
	}
	inbox := stringFromAny(obj["inbox"])
	if inbox == "" {
		return nil, fmt.Errorf("actor %s has no inbox", id)
	}
	username := stringFromAny(obj["preferredUsername"])
	if username == "" {
		return nil, fmt.Errorf("actor %s has no preferredUsername", id)
	}
	return &models.RemoteUser{
		ActorURI:       id,
		Username:       username,
		Domain:         u.Host,
		DisplayName:    stringFromAny(obj["name"]),
		Summary:        stringFromAny(obj["summary"]),
		AvatarURL:      stringFromAny(mapFromAny(obj["icon"])["url"]),
		InboxURL:       inbox,
		SharedInboxURL: stringFromAny(mapFromAny(obj["endpoints"])["sharedInbox"]),
		OutboxURL:      stringFromAny(obj["outbox"]),
		PublicKey:      []byte(stringFromAny(mapFromAny(obj["publicKey"])["publicKeyPem"])),
	}, nil
}
