package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/rapid-minutes/internal/backend"
	"github.com/pdiddy/rapid-minutes/internal/errclass"
	"github.com/pdiddy/rapid-minutes/internal/notify"
	"github.com/pdiddy/rapid-minutes/internal/session"
	"github.com/pdiddy/rapid-minutes/internal/store"
)

// app holds the components a session command wires together.
type app struct {
	client *backend.Client
	store  *store.Store
	center *notify.Center
	errs   *errclass.Classifier
	orch   *session.Orchestrator
}

// newApp opens the client store and builds the notification center, the
// classifier archiving into the store, and the orchestrator.
func newApp(centerOpts []notify.Option, orchOpts ...session.Option) (*app, error) {
	st, err := store.NewStore(cfg.Store)
	if err != nil {
		return nil, err
	}

	center := notify.New(append([]notify.Option{
		notify.WithAutoDismiss(cfg.Notify.AutoDismiss),
		notify.WithLogger(logger.Named("notify")),
	}, centerOpts...)...)

	errs := errclass.New(
		errclass.WithNotifier(center),
		errclass.WithArchive(st),
		errclass.WithSuggestionDelay(cfg.Notify.SuggestionDelay),
		errclass.WithLogger(logger.Named("errors")),
	)

	client := newClient()
	orch := session.New(client, cfg, append([]session.Option{
		session.WithNotifier(center),
		session.WithClassifier(errs),
		session.WithHistory(st),
		session.WithLogger(logger),
	}, orchOpts...)...)

	return &app{client: client, store: st, center: center, errs: errs, orch: orch}, nil
}

// Close stops background work and releases the store.
func (a *app) Close() {
	a.orch.Reset()
	a.center.Close()
	if err := a.store.Close(); err != nil {
		logger.Warn("closing store", zap.Error(err))
	}
}

func newClient() *backend.Client {
	return backend.NewClient(cfg.Backend, nil)
}

// explain prints the classified form of err on stderr and returns err.
func explain(cmd *cobra.Command, err error, ctx errclass.Context) error {
	r := errclass.Build(err, ctx, time.Now())
	fmt.Fprintln(cmd.ErrOrStderr(), notify.Format(notify.Notification{
		Kind:    notify.KindError,
		Title:   r.Message,
		Message: strings.Join(r.Suggestions, "\n"),
	}))
	return err
}
