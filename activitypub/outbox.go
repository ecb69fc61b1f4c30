package activitypub

import (
	"fmt"
	"net/http"

	"github.com/glade-social/glade/activitypub/activities"
	"github.com/glade-social/glade/internal/algorithms"
	"github.com/glade-social/glade/internal/httpx"
	"github.com/glade-social/glade/internal/to"
	"github.com/glade-social/glade/models"
	"github.com/go-chi/chi/v5"
	"github.com/go-json-experiment/json"
)

// Outbox serves a user's outbox as an OrderedCollection of their public
// posts, newest first.
func Outbox(env *Env, w http.ResponseWriter, r *http.Request) error {
	user, err := models.NewUsers(env.DB).Find(chi.URLParam(r, "username"))
	if err != nil {
		return httpx.Error(http.StatusNotFound, err)
	}
	posts, err := models.NewPosts(env.DB).RecentPublicByAuthor(user.ID, 20)
	if err != nil {
		return err
	}
	return to.ActivityJSON(w, map[string]any{
		"@context":   "https://www.w3.org/ns/activitystreams",
		"id":         user.OutboxURL(),
		"type":       "OrderedCollection",
		"totalItems": len(posts),
		"orderedItems": algorithms.Map(posts, func(post *models.Post) map[string]any {
			return activities.Create(env.Config.Domain, user, NoteDoc(user, post))
		}),
	})
}

// Followers serves a user's followers collection. Only the count is
// published; the membership is not enumerated.
func Followers(env *Env, w http.ResponseWriter, r *http.Request) error {
	user, err := models.NewUsers(env.DB).Find(chi.URLParam(r, "username"))
	if err != nil {
		return httpx.Error(http.StatusNotFound, err)
	}
	count, err := models.NewRemoteFollowers(env.DB).CountForUser(user.ID)
	if err != nil {
		return err
	}
	return to.ActivityJSON(w, map[string]any{
		"@context":     "https://www.w3.org/ns/activitystreams",
		"id":           user.FollowersURL(),
		"type":         "OrderedCollection",
		"totalItems":   count,
		"orderedItems": []any{},
	})
}

// Following serves a user's following collection, count only.
func Following(env *Env, w http.ResponseWriter, r *http.Request) error {
	user, err := models.NewUsers(env.DB).Find(chi.URLParam(r, "username"))
	if err != nil {
		return httpx.Error(http.StatusNotFound, err)
	}
	follows, err := models.NewRemoteFollows(env.DB).AcceptedForUser(user.ID)
	if err != nil {
		return err
	}
	return to.ActivityJSON(w, map[string]any{
		"@context":     "https://www.w3.org/ns/activitystreams",
		"id":           user.FollowingURL(),
		"type":         "OrderedCollection",
		"totalItems":   len(follows),
		"orderedItems": []any{},
	})
}

// Federator fans local actions out to the instances that should hear
// about them.
type Federator struct {
	env *Env
}

func NewFederator(env *Env) *Federator {
	return &Federator{env: env}
}

// federatable reports whether anything should leave the instance for
// this user and visibility.
func (f *Federator) federatable(user *models.User, visibility models.Visibility) bool {
	if !f.env.Config.FederationEnabled || !user.FederationEnabled {
		return false
	}
	switch visibility {
	case models.VisibilityPublic, models.VisibilityFollowers:
		return true
	default:
		return false
	}
}

// followerInboxes computes the delivery target set for a user: one inbox
// per follower, collapsed to shared inboxes where the peer has one.
func (f *Federator) followerInboxes(user *models.User) ([]string, error) {
	followers, err := models.NewRemoteFollowers(f.env.DB).ForUser(user.ID)
	if err != nil {
		return nil, err
	}
	return algorithms.Map(followers, func(fo *models.RemoteFollower) string {
		return fo.RemoteUser.DeliveryInbox()
	}), nil
}

func (f *Federator) enqueue(user *models.User, activity map[string]any, inboxes []string) error {
	if len(inboxes) == 0 {
		return nil
	}
	body, err := json.Marshal(activity)
	if err != nil {
		return err
	}
	return f.env.Queue.Enqueue(user, stringFromAny(activity["id"]), body, inboxes)
}

// Post federates a newly created post to the author's followers, and to
// the original author's inbox when the post replies to a federated post.
func (f *Federator) Post(author *models.User, post *models.Post) error {
	if post.LocalOnly || !f.federatable(author, post.Visibility) {
		return nil
	}
	inboxes, err := f.followerInboxes(author)
	if err != nil {
		return err
	}
	if post.InReplyToID != nil {
		parent, err := models.NewPosts(f.env.DB).Find(*post.InReplyToID)
		if err == nil && parent.RemoteAuthor != nil {
			inboxes = append(inboxes, parent.RemoteAuthor.DeliveryInbox())
		}
	}
	return f.enqueue(author, activities.Create(f.env.Config.Domain, author, NoteDoc(author, post)), inboxes)
}

// UpdatePost federates a post edit.
func (f *Federator) UpdatePost(author *models.User, post *models.Post) error {
	if post.LocalOnly || !f.federatable(author, post.Visibility) {
		return nil
	}
	inboxes, err := f.followerInboxes(author)
	if err != nil {
		return err
	}
	return f.enqueue(author, activities.Update(f.env.Config.Domain, author, NoteDoc(author, post)), inboxes)
}

// DeletePost federates a post deletion to everyone who may hold a copy.
func (f *Federator) DeletePost(author *models.User, post *models.Post) error {
	if post.LocalOnly || !f.federatable(author, post.Visibility) {
		return nil
	}
	inboxes, err := f.followerInboxes(author)
	if err != nil {
		return err
	}
	return f.enqueue(author, activities.Delete(f.env.Config.Domain, author, post.URI), inboxes)
}

// Follow sends a Follow to the remote actor and records it pending.
func (f *Federator) Follow(user *models.User, target *models.RemoteUser) error {
	if !f.env.Config.FederationEnabled || !user.FederationEnabled {
		return fmt.Errorf("federation is disabled")
	}
	if target.InboxURL == "" {
		return fmt.Errorf("follow %s: no inbox known", target.Acct())
	}
	activity := activities.Follow(f.env.Config.Domain, user, target.ActorURI)
	id := stringFromAny(activity["id"])
	if _, err := models.NewRemoteFollows(f.env.DB).Create(user, target, id); err != nil {
		return err
	}
	return f.enqueue(user, activity, []string{target.InboxURL})
}

// Unfollow retracts an earlier Follow.
func (f *Federator) Unfollow(user *models.User, follow *models.RemoteFollow) error {
	activity := activities.Unfollow(f.env.Config.Domain, user, follow.ActivityURI, follow.RemoteUser.ActorURI)
	return f.enqueue(user, activity, []string{follow.RemoteUser.InboxURL})
}

// Like sends a Like of a remote post to its author's inbox.
func (f *Federator) Like(user *models.User, post *models.Post) error {
	if post.RemoteAuthor == nil {
		return nil
	}
	activity := activities.Like(f.env.Config.Domain, user, post.URI)
	return f.enqueue(user, activity, []string{post.RemoteAuthor.DeliveryInbox()})
}
