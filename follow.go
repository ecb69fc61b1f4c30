package main

import (
	"context"
	"fmt"
	"net/url"

	"github.com/glade-social/glade/activitypub"
	"github.com/glade-social/glade/internal/webfinger"
	"github.com/glade-social/glade/models"
	"gorm.io/gorm"
)

type FollowCmd struct {
	Actor  string `required:"" help:"local username to follow with"`
	Target string `required:"" help:"handle to follow, user@domain"`
}

func (f *FollowCmd) Run(ctx *Context) error {
	db, err := gorm.Open(ctx.Dialector, &ctx.Config)
	if err != nil {
		return err
	}

	user, err := models.NewUsers(db).Find(f.Actor)
	if err != nil {
		return fmt.Errorf("failed to find local user: %w", err)
	}
	u, err := url.Parse(user.ActorURI)
	if err != nil {
		return err
	}
	config := models.DefaultConfig(u.Host)

	acct, err := webfinger.Parse(f.Target)
	if err != nil {
		return err
	}
	finger, err := acct.Fetch(context.Background())
	if err != nil {
		return fmt.Errorf("webfinger %s: %w", acct.String(), err)
	}
	uri, err := finger.ActivityPub()
	if err != nil {
		return err
	}

	env := &activitypub.Env{
		Env: &models.Env{
			DB:     db,
			Config: config,
		},
		Fetcher: activitypub.NewRemoteActorFetcher(db, config),
		Queue:   models.NewDeliveries(db),
	}
	target, err := env.Fetcher.Fetch(context.Background(), uri, user)
	if err != nil {
		return err
	}
	if err := activitypub.NewFederator(env).Follow(user, target); err != nil {
		return err
	}
	fmt.Printf("follow of %s queued; run deliver or serve to send it\n", target.Acct())
	return nil
}
