package activitypub

import (
	"github.com/glade-social/glade/models"
)

// DocumentContext is the @context published on every outbound document.
// The glade namespace carries the location extension.
func DocumentContext() []any {
	return []any{
		"https://www.w3.org/ns/activitystreams",
		"https://w3id.org/security/v1",
		map[string]any{
			"glade":    "https://glade.social/ns#",
			"location": "glade:location",
		},
	}
}

// ActorDoc renders a local user as an ActivityPub actor document.
func ActorDoc(user *models.User) map[string]any {
	doc := map[string]any{
		"@context":          DocumentContext(),
		"id":                user.ActorURI,
		"type":              "Person",
		"preferredUsername": user.Username,
		"name":              user.DisplayName,
		"summary":           user.Bio,
		"inbox":             user.InboxURL(),
		"outbox":            user.OutboxURL(),
		"followers":         user.FollowersURL(),
		"following":         user.FollowingURL(),
		"endpoints": map[string]any{
			"sharedInbox": sharedInbox(user),
		},
		"publicKey": map[string]any{
			"id":           user.KeyID(),
			"owner":        user.ActorURI,
			"publicKeyPem": string(user.PublicKey),
		},
	}
	if user.AvatarURL != "" {
		doc["icon"] = map[string]any{
			"type": "Image",
			"url":  user.AvatarURL,
		}
	}
	if user.ApproximateLocation && user.LocationName != "" {
		doc["glade:location"] = map[string]any{
			"name":   user.LocationName,
			"radius": user.LocationPrivacyRadius,
		}
	}
	return doc
}

func sharedInbox(user *models.User) string {
	u, err := urlHost(user.ActorURI)
	if err != nil {
		return ""
	}
	return "https://" + u + "/inbox"
}

// NoteDoc renders a local post as a Note, with to and cc derived from
// its visibility.
func NoteDoc(author *models.User, post *models.Post) map[string]any {
	doc := map[string]any{
		"@context":     DocumentContext(),
		"id":           post.URI,
		"type":         "Note",
		"attributedTo": author.ActorURI,
		"content":      post.Content,
		"published":    post.ID.ToTime().Format("2006-01-02T15:04:05Z"),
		"to":           noteTo(author, post),
		"cc":           noteCC(author, post),
	}
	if post.ContentWarning != "" {
		doc["summary"] = post.ContentWarning
		doc["sensitive"] = true
	}
	if post.InReplyTo != nil {
		doc["inReplyTo"] = post.InReplyTo.URI
	}
	return doc
}

func noteTo(author *models.User, post *models.Post) []string {
	switch post.Visibility {
	case models.VisibilityPublic:
		return []string{PublicAudience}
	case models.VisibilityFollowers:
		return []string{author.FollowersURL()}
	default:
		return []string{}
	}
}

func noteCC(author *models.User, post *models.Post) []string {
	switch post.Visibility {
	case models.VisibilityPublic, models.VisibilityLocal:
		return []string{author.FollowersURL()}
	default:
		return []string{}
	}
}
