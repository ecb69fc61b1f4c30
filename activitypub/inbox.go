package activitypub

import (
	"context"
	stdcrypto "crypto"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/glade-social/glade/activitypub/activities"
	"github.com/glade-social/glade/internal/httpsig"
	"github.com/glade-social/glade/internal/httpx"
	"github.com/glade-social/glade/internal/snowflake"
	"github.com/glade-social/glade/internal/to"
	"github.com/glade-social/glade/models"
	"github.com/go-json-experiment/json"
	"gorm.io/gorm"
)

// Outcome is the body of an inbox response: what happened to the
// activity. Ignored activities carry a reason.
type Outcome struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

func success() *Outcome              { return &Outcome{Status: "success"} }
func ignored(reason string) *Outcome { return &Outcome{Status: "ignored", Reason: reason} }
func failure(err error) *Outcome     { return &Outcome{Status: "error", Reason: err.Error()} }

// DeliveryQueue schedules outbound deliveries; the delivery worker
// drains it.
type DeliveryQueue interface {
	Enqueue(user *models.User, activityID string, activity []byte, inboxes []string) error
}

// Inbox handles POSTs to the shared inbox and to per-user inboxes. Both
// routes behave identically: the activity itself names its targets.
func Inbox(env *Env, w http.ResponseWriter, r *http.Request) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		return httpx.Error(http.StatusRequestEntityTooLarge, err)
	}

	audits := models.NewActivities(env.DB)
	act, err := ParseActivity(body)
	if err != nil {
		// malformed payloads still get an audit row; there is nothing to
		// dispatch but the attempt should be visible
		audit := &models.Activity{
			OriginHost: r.Host,
			Direction:  models.DirectionInbound,
			Outcome:    "rejected",
			Reason:     "malformed payload",
			Payload:    body,
		}
		if err := audits.Record(audit); err != nil {
			return err
		}
		return httpx.Error(http.StatusBadRequest, err)
	}

	meta := act.Meta()
	audit := &models.Activity{
		ActivityID: meta.ID,
		OriginHost: meta.OriginHost(),
		Direction:  models.DirectionInbound,
		Type:       activityType(act),
		ActorURI:   meta.Actor,
		ObjectURI:  objectOf(act),
		Payload:    body,
	}
	if err := audits.Record(audit); err != nil {
		return err
	}

	if err := httpsig.Verify(r, body, func(keyID string) (stdcrypto.PublicKey, error) {
		return env.GetKey(r.Context(), keyID)
	}); err != nil {
		audit.Outcome = "rejected"
		audit.Reason = err.Error()
		if uerr := audits.Update(audit); uerr != nil {
			return uerr
		}
		return httpx.Error(http.StatusUnauthorized, err)
	}

	// an id we have already processed from this origin is a redelivery.
	// Follows skip the gate: their handler is idempotent and answers a
	// redelivered Follow with another Accept, which is how a peer that
	// lost our first Accept recovers.
	var seen bool
	if _, isFollow := act.(*Follow); !isFollow {
		seen, err = audits.Seen(meta.OriginHost(), meta.ID)
		if err != nil {
			return err
		}
	}
	outcome := ignored("duplicate")
	if !seen {
		outcome, err = NewProcessor(env.DB, env.Config, env.Fetcher, env.Queue).Process(r.Context(), act)
		if err != nil {
			// the peer gets a structured outcome, not a transport error;
			// leaving the audit row unprocessed lets a redelivery retry
			outcome = failure(err)
		}
	}

	audit.Processed = outcome.Status != "error"
	audit.Outcome = outcome.Status
	audit.Reason = outcome.Reason
	if err := audits.Update(audit); err != nil {
		return err
	}
	w.WriteHeader(http.StatusAccepted)
	return to.JSON(w, outcome)
}

func activityType(act Activity) string {
	switch act := act.(type) {
	case *Follow:
		return "Follow"
	case *Accept:
		return "Accept"
	case *Reject:
		return "Reject"
	case *Create:
		return "Create"
	case *Update:
		return "Update"
	case *Delete:
		return "Delete"
	case *Like:
		return "Like"
	case *Announce:
		return "Announce"
	case *Undo:
		return "Undo"
	case *Unknown:
		return act.Type
	default:
		return ""
	}
}

// objectOf returns the URI of the object an activity acts on, empty when
// it carries none.
func objectOf(act Activity) string {
	switch act := act.(type) {
	case *Follow:
		return act.Object
	case *Accept:
		return act.Object.ID
	case *Reject:
		return act.Object.ID
	case *Create:
		if act.Note != nil {
			return act.Note.ID
		}
	case *Update:
		if act.Note != nil {
			return act.Note.ID
		}
	case *Delete:
		return act.Object
	case *Like:
		return act.Object
	case *Announce:
		return act.Object
	case *Undo:
		return act.Object.ID
	}
	return ""
}

// Processor applies verified activities to local state. Its dependencies
// are explicit so tests can substitute the fetcher and the queue.
type Processor struct {
	db      *gorm.DB
	config  models.Config
	fetcher ActorFetcher
	queue   DeliveryQueue
}

func NewProcessor(db *gorm.DB, config models.Config, fetcher ActorFetcher, queue DeliveryQueue) *Processor {
	return &Processor{
		db:      db,
		config:  config,
		fetcher: fetcher,
		queue:   queue,
	}
}

// Process dispatches one activity. The returned Outcome distinguishes
// activities that changed state from those that were understood but had
// nothing to act on; an error means the attempt should be retried by the
// peer.
func (p *Processor) Process(ctx context.Context, act Activity) (*Outcome, error) {
	switch act := act.(type) {
	case *Follow:
		return p.follow(ctx, act)
	case *Accept:
		return p.accept(ctx, act)
	case *Reject:
		return p.reject(ctx, act)
	case *Create:
		return p.create(ctx, act)
	case *Update:
		return p.update(ctx, act)
	case *Delete:
		return p.delete(ctx, act)
	case *Like:
		return p.like(ctx, act)
	case *Announce:
		return p.announce(ctx, act)
	case *Undo:
		return p.undo(ctx, act)
	case *Unknown:
		return ignored(fmt.Sprintf("unsupported type %q", act.Type)), nil
	default:
		return ignored("unsupported type"), nil
	}
}

func (p *Processor) follow(ctx context.Context, act *Follow) (*Outcome, error) {
	target, err := models.NewUsers(p.db).FindByURI(act.Object)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ignored("unknown user"), nil
		}
		return nil, err
	}
	follower, err := p.fetcher.Fetch(ctx, act.Actor, target)
	if err != nil {
		return nil, err
	}
	if err := models.NewRemoteFollowers(p.db).Create(target, follower, act.ID); err != nil {
		return nil, err
	}

	// follows are auto-accepted; a redelivered Follow gets another
	// Accept so a peer that lost ours can recover
	accept := activities.Accept(p.config.Domain, target, act.ID, act.Actor)
	body, err := json.Marshal(accept)
	if err != nil {
		return nil, err
	}
	id := stringFromAny(accept["id"])
	if err := p.queue.Enqueue(target, id, body, []string{follower.InboxURL}); err != nil {
		return nil, err
	}
	return success(), nil
}

func (p *Processor) accept(ctx context.Context, act *Accept) (*Outcome, error) {
	follows := models.NewRemoteFollows(p.db)
	follow, err := follows.FindByActivityURI(act.Object.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ignored("unknown follow"), nil
		}
		return nil, err
	}
	if follow.RemoteUser.ActorURI != act.Actor {
		return ignored("actor mismatch"), nil
	}
	if err := follows.Accept(follow); err != nil {
		return nil, err
	}

	// backfill a page of the new follow's history off the request path;
	// the fetch can outlast the server's write timeout, and its failure
	// is not fatal, their future posts will arrive over federation anyway
	go p.backfill(follow.RemoteUser, follow.User)
	return success(), nil
}

func (p *Processor) backfill(actor *models.RemoteUser, signAs *models.User) {
	ctx, cancel := context.WithTimeout(context.Background(), p.config.FetchTimeout)
	defer cancel()
	if n, err := p.fetcher.FetchPosts(ctx, actor, signAs); err != nil {
		log.Printf("backfill %s: %v", actor.Acct(), err)
	} else if n > 0 {
		log.Printf("backfill %s: stored %d posts", actor.Acct(), n)
	}
}

func (p *Processor) reject(ctx context.Context, act *Reject) (*Outcome, error) {
	follows := models.NewRemoteFollows(p.db)
	follow, err := follows.FindByActivityURI(act.Object.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ignored("unknown follow"), nil
		}
		return nil, err
	}
	if follow.RemoteUser.ActorURI != act.Actor {
		return ignored("actor mismatch"), nil
	}
	if err := follows.Reject(follow); err != nil {
		return nil, err
	}
	return success(), nil
}

func (p *Processor) create(ctx context.Context, act *Create) (*Outcome, error) {
	note := act.Note
	if note == nil || note.ID == "" {
		return ignored("unsupported object"), nil
	}
	posts := models.NewPosts(p.db)
	if _, err := posts.FindByFederatedID(note.ID); err == nil {
		return ignored("duplicate"), nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	author, err := p.fetcher.Fetch(ctx, note.AttributedTo, nil)
	if err != nil {
		return nil, err
	}

	published := note.Published
	if published.IsZero() {
		published = time.Now()
	}
	post := &models.Post{
		ID:             snowflake.TimeToID(published),
		RemoteAuthorID: &author.ID,
		Content:        note.Content,
		ContentWarning: note.Summary,
		Visibility:     models.Visibility(note.Visibility()),
		URI:            note.ID,
		FederatedID:    &note.ID,
	}
	if note.InReplyTo != "" {
		if parent, err := posts.FindByURI(note.InReplyTo); err == nil {
			post.InReplyToID = &parent.ID
		}
	}
	if err := p.db.Create(post).Error; err != nil {
		return nil, err
	}
	return success(), nil
}

func (p *Processor) update(ctx context.Context, act *Update) (*Outcome, error) {
	note := act.Note
	if note == nil || note.ID == "" {
		return ignored("unsupported object"), nil
	}
	revised := false
	posts := models.NewPosts(p.db)
	post, err := posts.FindByFederatedID(note.ID)
	switch {
	case err == nil:
		if post.RemoteAuthor == nil || post.RemoteAuthor.ActorURI != act.Actor {
			return ignored("actor mismatch"), nil
		}
		err = p.db.Model(post).Updates(map[string]any{
			"content":         note.Content,
			"content_warning": note.Summary,
		}).Error
		if err != nil {
			return nil, err
		}
		revised = true
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	// a backfilled copy of the same note is revised in place
	if actor, err := models.NewRemoteUsers(p.db).FindByURI(act.Actor); err == nil {
		n, err := models.NewRemotePosts(p.db).Revise(note.ID, actor.ID, note.Content, note.Summary)
		if err != nil {
			return nil, err
		}
		revised = revised || n
	}
	if !revised {
		return ignored("post not found"), nil
	}
	return success(), nil
}

func (p *Processor) delete(ctx context.Context, act *Delete) (*Outcome, error) {
	// an actor deleting itself removes its cached profile and, via
	// cascade, everything hanging off it
	if act.Object == act.Actor {
		res := p.db.Where("actor_uri = ?", act.Actor).Delete(&models.RemoteUser{})
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return ignored("unknown actor"), nil
		}
		return success(), nil
	}
	deleted, err := models.NewPosts(p.db).DeleteByFederatedID(act.Object)
	if err != nil {
		return nil, err
	}
	cached, err := models.NewRemotePosts(p.db).DeleteByObjectURI(act.Object)
	if err != nil {
		return nil, err
	}
	if !deleted && !cached {
		return ignored("post not found"), nil
	}
	return success(), nil
}

func (p *Processor) like(ctx context.Context, act *Like) (*Outcome, error) {
	post, err := models.NewPosts(p.db).FindByURI(act.Object)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ignored("post not found"), nil
		}
		return nil, err
	}
	actor, err := p.fetcher.Fetch(ctx, act.Actor, nil)
	if err != nil {
		return nil, err
	}
	if err := models.NewLikes(p.db).Create(post, actor, act.ID); err != nil {
		return nil, err
	}
	return success(), nil
}

func (p *Processor) announce(ctx context.Context, act *Announce) (*Outcome, error) {
	post, err := models.NewPosts(p.db).FindByURI(act.Object)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ignored("post not found"), nil
		}
		return nil, err
	}
	actor, err := p.fetcher.Fetch(ctx, act.Actor, nil)
	if err != nil {
		return nil, err
	}
	if err := models.NewBoosts(p.db).Create(post, actor, act.ID); err != nil {
		return nil, err
	}
	return success(), nil
}

func (p *Processor) undo(ctx context.Context, act *Undo) (*Outcome, error) {
	actor, err := models.NewRemoteUsers(p.db).FindByURI(act.Actor)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ignored("unknown actor"), nil
		}
		return nil, err
	}
	switch act.Object.Type {
	case "Follow":
		if target, err := models.NewUsers(p.db).FindByURI(act.Object.Object); err == nil {
			return success(), models.NewRemoteFollowers(p.db).Remove(target.ID, actor.ID)
		}
		return success(), models.NewRemoteFollowers(p.db).RemoveByActivityURI(actor.ID, act.Object.ID)
	case "Like":
		if post, err := models.NewPosts(p.db).FindByURI(act.Object.Object); err == nil {
			return success(), models.NewLikes(p.db).Undo(post.ID, actor.ID)
		}
		return success(), models.NewLikes(p.db).UndoByActivityURI(actor.ID, act.Object.ID)
	case "Announce":
		if post, err := models.NewPosts(p.db).FindByURI(act.Object.Object); err == nil {
			return success(), models.NewBoosts(p.db).Undo(post.ID, actor.ID)
		}
		return success(), models.NewBoosts(p.db).UndoByActivityURI(actor.ID, act.Object.ID)
	case "":
		// object given by reference only; the id could name any of ours,
		// try each table in turn
		if err := models.NewRemoteFollowers(p.db).RemoveByActivityURI(actor.ID, act.Object.ID); err != nil {
			return nil, err
		}
		if err := models.NewLikes(p.db).UndoByActivityURI(actor.ID, act.Object.ID); err != nil {
			return nil, err
		}
		return success(), models.NewBoosts(p.db).UndoByActivityURI(actor.ID, act.Object.ID)
	default:
		return ignored(fmt.Sprintf("unsupported undo of %q", act.Object.Type)), nil
	}
}
