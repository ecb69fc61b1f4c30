package main

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/glade-social/glade/activitypub"
	"github.com/glade-social/glade/models"
	"github.com/glade-social/glade/wellknown"
	"github.com/glade-social/glade/workers"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/group"
	"gorm.io/gorm"

	"github.com/glade-social/glade/internal/httpx"
)

type ServeCmd struct {
	Addr                string        `help:"address to listen" default:"127.0.0.1:9999"`
	Domain              string        `required:"" help:"domain name of the instance"`
	DisableFederation   bool          `help:"disable all outbound delivery"`
	MaxDeliveryAttempts int           `help:"delivery attempts before giving up" default:"5"`
	FetchTimeout        time.Duration `help:"timeout for remote fetches and deliveries" default:"30s"`
	ActorCacheTTL       time.Duration `help:"lifetime of the in-process actor cache" default:"1h"`
}

func (s *ServeCmd) Run(ctx *Context) error {
	db, err := gorm.Open(ctx.Dialector, &ctx.Config)
	if err != nil {
		return err
	}
	if err := configureDB(db); err != nil {
		return err
	}

	config := models.DefaultConfig(s.Domain)
	config.FederationEnabled = !s.DisableFederation
	config.MaxDeliveryAttempts = s.MaxDeliveryAttempts
	config.FetchTimeout = s.FetchTimeout
	config.ActorCacheTTL = s.ActorCacheTTL

	env := &activitypub.Env{
		Env: &models.Env{
			DB:     db,
			Config: config,
		},
		Fetcher: activitypub.NewRemoteActorFetcher(db, config),
		Queue:   models.NewDeliveries(db),
	}
	envFn := func(r *http.Request) *activitypub.Env { return env }

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Post("/inbox", httpx.HandlerFunc(envFn, activitypub.Inbox))

	r.Route("/users/{username}", func(r chi.Router) {
		r.Get("/", httpx.HandlerFunc(envFn, activitypub.ActorShow))
		r.Post("/inbox", httpx.HandlerFunc(envFn, activitypub.Inbox))
		r.Get("/outbox", httpx.HandlerFunc(envFn, activitypub.Outbox))
		r.Get("/followers", httpx.HandlerFunc(envFn, activitypub.Followers))
		r.Get("/following", httpx.HandlerFunc(envFn, activitypub.Following))
	})

	r.Get("/posts/{id:[0-9]+}", httpx.HandlerFunc(envFn, activitypub.PostShow))

	r.Route("/.well-known", func(r chi.Router) {
		r.Get("/webfinger", httpx.HandlerFunc(envFn, wellknown.WebfingerShow))
		r.Get("/host-meta", wellknown.HostMetaIndex)
		r.Get("/nodeinfo", httpx.HandlerFunc(envFn, wellknown.NodeInfoIndex))
	})
	r.Get("/nodeinfo/{version}", httpx.HandlerFunc(envFn, wellknown.NodeInfoShow))

	r.Route("/api/federation", func(r chi.Router) {
		r.Get("/status", httpx.HandlerFunc(envFn, activitypub.FederationStatus))
		r.Get("/activity", httpx.HandlerFunc(envFn, activitypub.FederationActivity))
	})

	r.Get("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		// crawlers have no business in a privacy-focused instance
		io.WriteString(w, "User-agent: *\nDisallow: /")
	})

	g := group.New(context.Background())
	g.Add(workers.NewDeliveryProcessor(db, config))
	g.Add(workers.NewActorRefreshProcessor(db, config))
	g.Add(func(ctx context.Context) error {
		svr := &http.Server{
			Addr:         s.Addr,
			Handler:      r,
			WriteTimeout: 15 * time.Second,
			ReadTimeout:  15 * time.Second,
		}
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			svr.Shutdown(shutdownCtx)
		}()
		return svr.ListenAndServe()
	})
	return g.Wait()
}
