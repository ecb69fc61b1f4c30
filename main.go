package main

import (
	"github.com/alecthomas/kong"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Context struct {
	Debug bool

	gorm.Config
	Dialector gorm.Dialector
}

var cli struct {
	Debug bool   `help:"Enable debug mode."`
	DSN   string `help:"Data source name." default:"glade.db"`

	Serve         ServeCmd         `cmd:"" help:"Serve the federation endpoints."`
	AutoMigrate   AutoMigrateCmd   `cmd:"" help:"Create or update the database schema."`
	CreateAccount CreateAccountCmd `cmd:"" help:"Create a local account."`
	Follow        FollowCmd        `cmd:"" help:"Follow a remote actor."`
	FetchActor    FetchActorCmd    `cmd:"" help:"Fetch and cache a remote actor."`
	Deliver       DeliverCmd       `cmd:"" help:"Process the outbound delivery queue once."`
}

func main() {
	ctx := kong.Parse(&cli)
	err := ctx.Run(&Context{
		Debug: cli.Debug,
		Config: gorm.Config{
			TranslateError: true,
			Logger: logger.Default.LogMode(func() logger.LogLevel {
				if cli.Debug {
					return logger.Info
				}
				return logger.Warn
			}()),
		},
		Dialector: newDialector(cli.DSN),
	})
	ctx.FatalIfErrorf(err)
}
