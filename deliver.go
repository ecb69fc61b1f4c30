package main

import (
	"context"

	"github.com/glade-social/glade/models"
	"github.com/glade-social/glade/workers"
	"gorm.io/gorm"
)

type DeliverCmd struct {
	Domain              string `required:"" help:"domain name of the instance"`
	MaxDeliveryAttempts int    `help:"delivery attempts before giving up" default:"5"`
}

func (d *DeliverCmd) Run(ctx *Context) error {
	db, err := gorm.Open(ctx.Dialector, &ctx.Config)
	if err != nil {
		return err
	}
	config := models.DefaultConfig(d.Domain)
	config.MaxDeliveryAttempts = d.MaxDeliveryAttempts
	return workers.DeliverDue(context.Background(), db, config)
}
