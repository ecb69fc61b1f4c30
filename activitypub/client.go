package activitypub

import (
	"context"
	stdcrypto "crypto"
	"fmt"
	"net/http"

	"github.com/carlmjohnson/requests"
	"github.com/glade-social/glade/internal/crypto"
	"github.com/glade-social/glade/internal/httpsig"
	"github.com/glade-social/glade/models"
)

// Client fetches and delivers ActivityPub resources. A zero Client makes
// unsigned requests; NewClient returns one that signs as a local user.
type Client struct {
	keyID      string
	privateKey stdcrypto.PrivateKey
}

// NewClient returns a client that signs requests with the user's key.
func NewClient(signAs *models.User) (*Client, error) {
	_, priv, err := crypto.ParseRSAPrivateKey(signAs.PrivateKey)
	if err != nil {
		return nil, err
	}
	return &Client{
		keyID:      signAs.KeyID(),
		privateKey: priv,
	}, nil
}

func (c *Client) transport() requests.RoundTripFunc {
	return func(req *http.Request) (*http.Response, error) {
		if c.keyID != "" {
			if err := httpsig.Sign(req, c.keyID, c.privateKey, nil); err != nil {
				return nil, fmt.Errorf("failed to sign request: %w", err)
			}
		}
		return http.DefaultTransport.RoundTrip(req)
	}
}

// Fetch fetches the ActivityPub resource at uri and decodes it into obj.
func (c *Client) Fetch(ctx context.Context, uri string, obj any) error {
	return requests.URL(uri).
		Accept(`application/ld+json; profile="https://www.w3.org/ns/activitystreams"`).
		Transport(c.transport()).
		CheckContentType(
			"application/ld+json",
			"application/activity+json",
			"application/json",
			"application/octet-stream", // sigh
		).
		CheckStatus(http.StatusOK).
		ToJSON(obj).
		Fetch(ctx)
}

// Post delivers the serialized activity body to the given inbox.
func (c *Client) Post(ctx context.Context, inbox string, body []byte) error {
	return requests.URL(inbox).
		BodyBytes(body).
		Header("Content-Type", `application/ld+json; profile="https://www.w3.org/ns/activitystreams"`).
		Transport(requests.RoundTripFunc(func(req *http.Request) (*http.Response, error) {
			if err := httpsig.Sign(req, c.keyID, c.privateKey, body); err != nil {
				return nil, fmt.Errorf("failed to sign request: %w", err)
			}
			return http.DefaultTransport.RoundTrip(req)
		})).
		CheckStatus(http.StatusOK, http.StatusCreated, http.StatusAccepted).
		Fetch(ctx)
}
