package activitypub

import (
	"fmt"
	"net/url"
	"time"

	"github.com/go-json-experiment/json"
)

// PublicAudience is the well known collection that marks an object as
// publicly addressed.
const PublicAudience = "https://www.w3.org/ns/activitystreams#Public"

// An Activity is one of the closed set of activity types the inbox
// dispatches on. Activities this instance does not understand parse to
// *Unknown rather than an error, because receiving them is normal.
type Activity interface {
	// Meta returns the fields common to every activity.
	Meta() *ActivityMeta
}

// ActivityMeta holds the fields every activity carries.
type ActivityMeta struct {
	// ID is the activity's id, empty when the peer sent none.
	ID string
	// Actor is the URI of the actor performing the activity.
	Actor string
}

func (m *ActivityMeta) Meta() *ActivityMeta { return m }

// OriginHost returns the host of the actor URI. Activity ids are only
// meaningful within the origin that minted them.
func (m *ActivityMeta) OriginHost() string {
	u, err := url.Parse(m.Actor)
	if err != nil {
		return ""
	}
	return u.Host
}

// A Follow asks to follow the local actor named by Object.
type Follow struct {
	ActivityMeta
	Object string
}

// An Accept answers a Follow this instance sent.
type Accept struct {
	ActivityMeta
	Object Wrapped
}

// A Reject declines a Follow this instance sent.
type Reject struct {
	ActivityMeta
	Object Wrapped
}

// A Create delivers a new object, normally a Note.
type Create struct {
	ActivityMeta
	Note *Note
}

// An Update revises an object this instance may hold a copy of.
type Update struct {
	ActivityMeta
	Note *Note
}

// A Delete retracts the object named by Object.
type Delete struct {
	ActivityMeta
	Object string
}

// A Like marks approval of the post named by Object.
type Like struct {
	ActivityMeta
	Object string
}

// An Announce boosts the post named by Object.
type Announce struct {
	ActivityMeta
	Object string
}

// An Undo retracts an earlier activity, carried inline or by reference.
type Undo struct {
	ActivityMeta
	Object Wrapped
}

// An Unknown is any activity type outside the supported set.
type Unknown struct {
	ActivityMeta
	Type string
}

// Wrapped is the inner activity referenced by Accept, Reject and Undo.
// Peers send either the full inner activity or just its id; when only
// the id is present the other fields are empty.
type Wrapped struct {
	Type   string
	ID     string
	Actor  string
	Object string
}

// A Note is the object of a Create or Update.
type Note struct {
	ID           string
	AttributedTo string
	Content      string
	Summary      string
	InReplyTo    string
	Published    time.Time
	To           []string
	CC           []string
	// Location carries the glade location extension, nil when absent.
	Location *Location
}

// Visibility derives the post visibility from the note's addressing.
func (n *Note) Visibility() string {
	for _, to := range n.To {
		if to == PublicAudience {
			return "public"
		}
	}
	for _, cc := range n.CC {
		if cc == PublicAudience {
			return "public"
		}
	}
	for _, to := range n.To {
		if to == n.AttributedTo+"/followers" {
			return "followers"
		}
	}
	return "private"
}

// Location is the glade:location extension object: a coarse place name
// with an optional privacy radius, never precise coordinates.
type Location struct {
	Name   string
	Radius float64
}

// ParseActivity parses an activity document into its typed form. It
// returns an error only when the document is not a JSON object or names
// no actor; an unrecognized type is returned as *Unknown.
func ParseActivity(body []byte) (Activity, error) {
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, fmt.Errorf("parse activity: %w", err)
	}
	return activityFromMap(obj)
}

func activityFromMap(obj map[string]any) (Activity, error) {
	meta := ActivityMeta{
		ID:    stringFromAny(obj["id"]),
		Actor: stringFromAny(obj["actor"]),
	}
	if meta.Actor == "" {
		return nil, fmt.Errorf("parse activity: no actor")
	}
	typ := stringFromAny(obj["type"])
	switch typ {
	case "Follow":
		return &Follow{meta, stringFromAny(obj["object"])}, nil
	case "Accept":
		return &Accept{meta, wrappedFromAny(obj["object"])}, nil
	case "Reject":
		return &Reject{meta, wrappedFromAny(obj["object"])}, nil
	case "Create":
		return &Create{meta, noteFromAny(obj["object"])}, nil
	case "Update":
		return &Update{meta, noteFromAny(obj["object"])}, nil
	case "Delete":
		return &Delete{meta, objectURI(obj["object"])}, nil
	case "Like":
		return &Like{meta, objectURI(obj["object"])}, nil
	case "Announce":
		return &Announce{meta, objectURI(obj["object"])}, nil
	case "Undo":
		return &Undo{meta, wrappedFromAny(obj["object"])}, nil
	default:
		return &Unknown{meta, typ}, nil
	}
}

// objectURI accepts an object given as a bare URI or as an embedded
// object with an id.
func objectURI(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case map[string]any:
		return stringFromAny(v["id"])
	default:
		return ""
	}
}

func wrappedFromAny(v any) Wrapped {
	switch v := v.(type) {
	case string:
		return Wrapped{ID: v}
	case map[string]any:
		return Wrapped{
			Type:   stringFromAny(v["type"]),
			ID:     stringFromAny(v["id"]),
			Actor:  stringFromAny(v["actor"]),
			Object: objectURI(v["object"]),
		}
	default:
		return Wrapped{}
	}
}

func noteFromAny(v any) *Note {
	obj := mapFromAny(v)
	if obj == nil {
		return nil
	}
	if typ := stringFromAny(obj["type"]); typ != "Note" && typ != "Article" {
		return nil
	}
	note := &Note{
		ID:           stringFromAny(obj["id"]),
		AttributedTo: stringFromAny(obj["attributedTo"]),
		Content:      stringFromAny(obj["content"]),
		Summary:      stringFromAny(obj["summary"]),
		InReplyTo:    stringFromAny(obj["inReplyTo"]),
		Published:    timeFromAnyOrZero(obj["published"]),
		To:           stringsFromAny(obj["to"]),
		CC:           stringsFromAny(obj["cc"]),
	}
	if loc := mapFromAny(obj["glade:location"]); loc != nil {
		note.Location = &Location{
			Name:   stringFromAny(loc["name"]),
			Radius: floatFromAny(loc["radius"]),
		}
	}
	return note
}
