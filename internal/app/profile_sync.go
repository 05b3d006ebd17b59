package app

import (
	"context"
	"fmt"
	"log/slog"

	"doubledutch-sync/internal/docstore"
	"doubledutch-sync/internal/domain"
)

// ProfileSync mirrors the learner's profile document into the State Store.
type ProfileSync struct {
	docs     docstore.Store
	state    *StateStore
	identity string
	path     string
	logger   *slog.Logger
}

func NewProfileSync(docs docstore.Store, state *StateStore, appID, identity string, logger *slog.Logger) *ProfileSync {
	path := ProfilePath(appID, identity)
	return &ProfileSync{
		docs:     docs,
		state:    state,
		identity: identity,
		path:     path,
		logger:   logger.With("sync", "profile", "identity", identity, "path", path),
	}
}

// Run subscribes until ctx is done or the subscription ends.
func (p *ProfileSync) Run(ctx context.Context) error {
	sub, err := p.docs.Watch(ctx, p.path)
	if err != nil {
		p.logger.Error("profile subscription failed", "error", err)
		p.publish(SetLoading(false))
		return fmt.Errorf("watch profile: %w", err)
	}
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub.C:
			if !ok {
				return nil
			}
			p.handle(ctx, ev)
		}
	}
}

func (p *ProfileSync) handle(ctx context.Context, ev docstore.Event[docstore.Snapshot]) {
	if ev.Err != nil {
		// keep the last known profile; just make sure the caller is not stuck loading
		p.logger.Error("profile snapshot failed", "error", ev.Err)
		p.publish(SetLoading(false))
		return
	}

	if ev.Value.Exists {
		p.publish(SetProfile(NormalizeProfile(ev.Value.Fields)))
		return
	}

	defaults := domain.DefaultProfile()
	created, err := p.docs.Create(ctx, p.path, profileFields(defaults))
	if err != nil {
		p.logger.Error("initializing profile failed", "error", err)
		p.publish(SetLoading(false))
		return
	}
	if !created {
		// another device wrote the profile first; its snapshot follows
		p.logger.Debug("profile created elsewhere, waiting for snapshot")
		return
	}
	p.logger.Info("initialized profile")
	p.publish(SetProfile(defaults))
}

func (p *ProfileSync) publish(a Action) {
	if err := p.state.DispatchFor(p.identity, a); err != nil {
		p.logger.Debug("dropped profile update", "error", err)
	}
}
