package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/glade-social/glade/internal/crypto"
	"github.com/glade-social/glade/models"
	"gorm.io/gorm"
)

type CreateAccountCmd struct {
	Email    string `required:"" help:"email address of the user to create, user@domain names the account"`
	Password string `required:"" help:"password of the user to create"`
}

func (c *CreateAccountCmd) Run(ctx *Context) error {
	db, err := gorm.Open(ctx.Dialector, &ctx.Config)
	if err != nil {
		return err
	}

	parts := strings.Split(c.Email, "@")
	if len(parts) != 2 {
		return errors.New("invalid email address")
	}
	username, domain := parts[0], parts[1]

	kp, err := crypto.GenerateRSAKeypair()
	if err != nil {
		return err
	}
	user, err := models.NewUsers(db).Create(domain, username, c.Email, c.Password, models.Keypair{
		PublicKey:  kp.PublicKey,
		PrivateKey: kp.PrivateKey,
	})
	if err != nil {
		return err
	}
	fmt.Println("created", user.ActorURI)
	return nil
}
