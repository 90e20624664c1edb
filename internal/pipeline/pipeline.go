package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github-faces/internal/avatar"
	"github-faces/internal/cache"
	"github-faces/internal/domain"
	"github-faces/internal/github"
	"github-faces/internal/repository"
	"github-faces/internal/storage"
)

// pause after each user's enrichment to stay within courteous request-rate
// bounds; deliberately unconditional rather than adaptive
const pacingDelay = 150 * time.Millisecond

// ErrNoUsers is the single fatal condition: discovery produced nothing, so
// no later stage may run (pruning on an empty set would wipe every cached
// avatar).
var ErrNoUsers = errors.New("no users discovered")

type Config struct {
	Client      *github.Client
	Avatars     *avatar.Syncer
	Cache       *cache.Store
	Runs        repository.RunRepository // optional
	Storage     storage.Service          // optional
	Bucket      string
	KeyPrefix   string
	TargetUsers int
	Logger      *logrus.Logger
	Sleep       func(time.Duration)
}

// Pipeline runs the stages in fixed order, sequentially and on a single
// goroutine: discovery, enrichment, avatar sync, pruning, cache write.
// Every failure past discovery is per-item and non-fatal.
type Pipeline struct {
	cfg Config
}

func New(cfg Config) *Pipeline {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Sleep == nil {
		cfg.Sleep = time.Sleep
	}
	return &Pipeline{cfg: cfg}
}

func (p *Pipeline) Run(ctx context.Context) (*domain.Run, error) {
	logger := p.cfg.Logger
	run := &domain.Run{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}

	logger.Infof("starting fetch, target: %d users", p.cfg.TargetUsers)
	users := p.cfg.Client.Discover(ctx, p.cfg.TargetUsers)
	if len(users) == 0 {
		return nil, ErrNoUsers
	}
	run.Discovered = len(users)
	logger.Infof("fetched %d users, enriching with details", len(users))

	total := len(users)
	for i := range users {
		if p.cfg.Client.Enrich(ctx, &users[i]) {
			run.Enriched++
			logger.Infof("[%d/%d - %.1f%%] fetched details for %s",
				i+1, total, float64(i+1)/float64(total)*100, users[i].Login)
		}
		p.cfg.Sleep(pacingDelay)
	}

	logger.Info("synchronizing avatars")
	run.AvatarsDownloaded = p.cfg.Avatars.Sync(ctx, users)

	logins := make([]string, len(users))
	for i, u := range users {
		logins[i] = u.Login
	}
	// pruning is irreversible: never run it on an empty collection
	if len(logins) > 0 {
		run.AvatarsPruned = p.cfg.Avatars.Prune(logins)
	}

	if err := p.cfg.Cache.Save(users); err != nil {
		logger.Errorf("save cache: %v", err)
	}

	p.mirrorAvatars(ctx, logins)

	run.FinishedAt = time.Now().UTC()
	if p.cfg.Runs != nil {
		if err := p.cfg.Runs.Record(ctx, run); err != nil {
			logger.Warnf("record run: %v", err)
		}
	}

	logger.Infof("fetch complete: %d users, %d enriched, %d avatars downloaded, %d pruned",
		run.Discovered, run.Enriched, run.AvatarsDownloaded, run.AvatarsPruned)
	return run, nil
}

// mirrorAvatars pushes the avatar directory to object storage and removes
// remote keys whose login dropped out of the set, keeping the bucket in
// lock-step with the local prune.
func (p *Pipeline) mirrorAvatars(ctx context.Context, logins []string) {
	if p.cfg.Storage == nil || p.cfg.Bucket == "" {
		return
	}
	logger := p.cfg.Logger

	prefix := strings.Trim(p.cfg.KeyPrefix, "/")
	dest, err := p.cfg.Storage.UploadDirectory(ctx, p.cfg.Avatars.Dir(), p.cfg.Bucket, prefix)
	if err != nil {
		logger.Errorf("mirror avatars: %v", err)
		return
	}
	logger.Infof("avatars mirrored to %s", dest)

	keep := make(map[string]struct{}, len(logins))
	for _, login := range logins {
		keep[strings.ToLower(login)+".png"] = struct{}{}
	}

	objects, err := p.cfg.Storage.ListObjects(ctx, p.cfg.Bucket, prefix)
	if err != nil {
		logger.Warnf("list mirrored avatars: %v", err)
		return
	}

	var stale []string
	for _, obj := range objects {
		name := obj.Key
		if prefix != "" {
			name = strings.TrimPrefix(name, prefix+"/")
		}
		if _, ok := keep[name]; !ok {
			stale = append(stale, obj.Key)
		}
	}
	if len(stale) == 0 {
		return
	}
	if err := p.cfg.Storage.DeleteObjects(ctx, p.cfg.Bucket, stale); err != nil {
		logger.Warnf("delete stale mirrored avatars: %v", err)
		return
	}
	logger.Infof("removed %d stale mirrored avatars", len(stale))
}
