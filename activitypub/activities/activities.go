// Package activities builds the activity envelopes this instance sends.
// Every envelope gets a freshly minted id under the sender's domain.
package activities

import (
	"fmt"

	"github.com/glade-social/glade/models"
	"github.com/google/uuid"
)

const (
	FOLLOW   = "Follow"
	ACCEPT   = "Accept"
	CREATE   = "Create"
	UPDATE   = "Update"
	DELETE   = "Delete"
	LIKE     = "Like"
	UNDO     = "Undo"
	ANNOUNCE = "Announce"
)

// NewID mints an activity id under the actor's domain.
func NewID(domain string) string {
	return fmt.Sprintf("https://%s/activities/%s", domain, uuid.New().String())
}

func envelope(domain, typ string, actor *models.User, object any) map[string]any {
	return map[string]any{
		"@context": "https://www.w3.org/ns/activitystreams",
		"id":       NewID(domain),
		"type":     typ,
		"actor":    actor.ActorURI,
		"object":   object,
	}
}

// Follow asks to follow the actor at target.
func Follow(domain string, actor *models.User, target string) map[string]any {
	return envelope(domain, FOLLOW, actor, target)
}

// Accept answers an inbound Follow. The inner activity is echoed back so
// the peer can match it to the Follow it sent.
func Accept(domain string, actor *models.User, followID, followActor string) map[string]any {
	return envelope(domain, ACCEPT, actor, map[string]any{
		"id":     followID,
		"type":   FOLLOW,
		"actor":  followActor,
		"object": actor.ActorURI,
	})
}

// Create wraps a note document.
func Create(domain string, actor *models.User, note map[string]any) map[string]any {
	activity := envelope(domain, CREATE, actor, note)
	activity["to"] = note["to"]
	activity["cc"] = note["cc"]
	return activity
}

// Update wraps a revised note document.
func Update(domain string, actor *models.User, note map[string]any) map[string]any {
	activity := envelope(domain, UPDATE, actor, note)
	activity["to"] = note["to"]
	activity["cc"] = note["cc"]
	return activity
}

// Delete retracts the object at uri.
func Delete(domain string, actor *models.User, uri string) map[string]any {
	return envelope(domain, DELETE, actor, uri)
}

// Like marks approval of the object at uri.
func Like(domain string, actor *models.User, uri string) map[string]any {
	return envelope(domain, LIKE, actor, uri)
}

// Unfollow retracts an earlier Follow by id.
func Unfollow(domain string, actor *models.User, followID, target string) map[string]any {
	return envelope(domain, UNDO, actor, map[string]any{
		"id":     followID,
		"type":   FOLLOW,
		"actor":  actor.ActorURI,
		"object": target,
	})
}
