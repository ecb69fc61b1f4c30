package main

import (
	"context"
	"fmt"
	"os"

	"github.com/glade-social/glade/activitypub"
	"github.com/glade-social/glade/models"
	"github.com/go-json-experiment/json"
	"gorm.io/gorm"
)

type FetchActorCmd struct {
	Actor  string `required:"" help:"URI of the actor to fetch"`
	SignAs string `help:"local username to sign the request with"`
}

func (f *FetchActorCmd) Run(ctx *Context) error {
	db, err := gorm.Open(ctx.Dialector, &ctx.Config)
	if err != nil {
		return err
	}

	var signAs *models.User
	if f.SignAs != "" {
		signAs, err = models.NewUsers(db).Find(f.SignAs)
		if err != nil {
			return fmt.Errorf("failed to find local user: %w", err)
		}
	}

	fetcher := activitypub.NewRemoteActorFetcher(db, models.DefaultConfig(""))
	actor, err := fetcher.Refresh(context.Background(), f.Actor, signAs)
	if err != nil {
		return err
	}
	return json.MarshalOptions{}.MarshalFull(json.EncodeOptions{
		Indent: "  ",
	}, os.Stdout, actor)
}
