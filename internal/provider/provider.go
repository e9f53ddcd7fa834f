// Package provider resolves whether the backend is reachable and exposes a
// uniform in-memory shape for posts and timelines regardless of source.
package provider

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/Maria-Liakata-NLP-Group/social-media-timeline-dashboard/internal/backend"
	"github.com/Maria-Liakata-NLP-Group/social-media-timeline-dashboard/internal/fixtures"
	"github.com/Maria-Liakata-NLP-Group/social-media-timeline-dashboard/internal/models"
)

// ErrBackendRequired is returned by operations that only the backend can
// perform (summary generation, uploads) while running on fixtures.
var ErrBackendRequired = errors.New("provider: backend unavailable")

// Provider loads entities from the backend when it is reachable, otherwise
// from static fixtures. Availability is probed exactly once at construction
// and stays fixed for the session; it is an explicit value here rather than
// ambient state shared across components.
type Provider struct {
	backend    *backend.Client
	fixtures   *fixtures.Store
	log        *logrus.Logger
	useBackend bool
}

// New probes the backend and returns a provider bound to whichever source
// answered.
func New(ctx context.Context, client *backend.Client, store *fixtures.Store, log *logrus.Logger) *Provider {
	p := &Provider{backend: client, fixtures: store, log: log}
	p.useBackend = client.Health(ctx)
	if p.useBackend {
		log.Info("backend reachable, serving live data")
	} else {
		log.WithField("data_dir", store.Dir()).Warn("backend unreachable, serving static fixtures")
	}
	return p
}

// BackendAvailable reports which source the session is pinned to.
func (p *Provider) BackendAvailable() bool {
	return p.useBackend
}

// Backend exposes the raw client for proxy-only operations. Nil while the
// session runs on fixtures.
func (p *Provider) Backend() (*backend.Client, error) {
	if !p.useBackend {
		return nil, ErrBackendRequired
	}
	return p.backend, nil
}

// UserIDs returns the dataset roster, or nil on failure.
func (p *Provider) UserIDs(ctx context.Context) []string {
	var ids []string
	var err error
	if p.useBackend {
		ids, err = p.backend.UserIDs(ctx)
	} else {
		ids, err = p.fixtures.UserIDs()
	}
	if err != nil {
		p.log.WithError(err).Error("failed to load user ids")
		return nil
	}
	return ids
}

// LoadPosts returns the posts for a user. It fails soft: on any transport
// error it logs and yields an empty set, never an error.
func (p *Provider) LoadPosts(ctx context.Context, userID string) *models.PostSet {
	var set *models.PostSet
	var err error
	if p.useBackend {
		set, err = p.backend.Posts(ctx, userID)
	} else {
		set, err = p.fixtures.Posts(userID)
	}
	if err != nil {
		p.log.WithError(err).WithField("user_id", userID).Error("failed to load posts")
		return models.NewPostSet()
	}
	p.log.WithFields(logrus.Fields{"user_id": userID, "posts": set.Len()}).Info("loaded posts")
	return set
}

// LoadTimelines returns the interest-flagged timelines for a user, with the
// same soft-fail contract as LoadPosts. In fixture mode the raw per-user
// timeline file is filtered locally, for parity with the remote endpoint.
func (p *Provider) LoadTimelines(ctx context.Context, userID string) []models.Timeline {
	var timelines []models.Timeline
	var err error
	if p.useBackend {
		timelines, err = p.backend.TimelinesOfInterest(ctx, userID)
	} else {
		timelines, err = p.fixtures.Timelines(userID)
	}
	if err != nil {
		p.log.WithError(err).WithField("user_id", userID).Error("failed to load timelines")
		return nil
	}
	p.log.WithFields(logrus.Fields{"user_id": userID, "timelines": len(timelines)}).Info("loaded timelines")
	return timelines
}

// Summary looks up a cached summary for a timeline key. In backend mode it
// asks the summary endpoint; in fixture mode it reads the summaries decoded
// from the timeline file. Missing summaries are "" without error.
func (p *Provider) Summary(ctx context.Context, userID, timelineID, model string, loaded []models.Timeline) (string, error) {
	if p.useBackend {
		return p.backend.Summary(ctx, userID, timelineID, model)
	}
	for _, tl := range loaded {
		if tl.ID == timelineID {
			return tl.Summary(model), nil
		}
	}
	return "", nil
}
