package avatar

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github-faces/internal/domain"
)

const (
	downloadTimeout = 10 * time.Second
	probeTimeout    = 5 * time.Second
)

// Doer executes a single HTTP request.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Config struct {
	Dir        string
	HTTPClient Doer
	Logger     *logrus.Logger
}

// Syncer keeps a local directory of avatar images in step with the current
// user collection: it downloads images that are missing or stale and prunes
// files whose login dropped out of the set.
type Syncer struct {
	dir    string
	http   Doer
	logger *logrus.Logger
}

func NewSyncer(cfg Config) *Syncer {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: downloadTimeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Syncer{
		dir:    cfg.Dir,
		http:   cfg.HTTPClient,
		logger: cfg.Logger,
	}
}

// Dir returns the local avatar directory.
func (s *Syncer) Dir() string { return s.dir }

// Path returns the local file path for a user's avatar.
func (s *Syncer) Path(login string) string {
	return filepath.Join(s.dir, strings.ToLower(login)+".png")
}

// Sync conditionally downloads every user's avatar and returns how many
// files were written. Individual failures are logged and skipped.
func (s *Syncer) Sync(ctx context.Context, users []domain.User) int {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		s.logger.Errorf("create avatar dir: %v", err)
		return 0
	}

	downloaded := 0
	total := len(users)
	for i, user := range users {
		s.logger.Infof("[%d/%d - %.1f%%] processing avatar for %s",
			i+1, total, float64(i+1)/float64(total)*100, user.Login)

		path := s.Path(user.Login)
		if !s.shouldDownload(ctx, path, user.AvatarURL) {
			s.logger.Infof("local avatar up-to-date: %s", user.Login)
			continue
		}
		if err := s.download(ctx, user.AvatarURL, path); err != nil {
			s.logger.Errorf("download avatar for %s: %v", user.Login, err)
			continue
		}
		downloaded++
		s.logger.Infof("downloaded avatar: %s", user.Login)
	}
	return downloaded
}

// shouldDownload decides whether the remote image must be fetched. A failed
// freshness probe keeps the existing file rather than re-downloading on
// every bit of network noise.
func (s *Syncer) shouldDownload(ctx context.Context, path, remoteURL string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return true
	}
	remote, ok := s.remoteModTime(ctx, remoteURL)
	if !ok {
		return false
	}
	return remote.After(info.ModTime())
}

// remoteModTime probes the image's Last-Modified header without fetching
// the body.
func (s *Syncer) remoteModTime(ctx context.Context, url string) (time.Time, bool) {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodHead, url, nil)
	if err != nil {
		return time.Time{}, false
	}
	resp, err := s.http.Do(req)
	if err != nil {
		s.logger.Warnf("probe %s: %v", url, err)
		return time.Time{}, false
	}
	resp.Body.Close()

	lastModified := resp.Header.Get("Last-Modified")
	if lastModified == "" {
		return time.Time{}, false
	}
	t, err := http.ParseTime(lastModified)
	if err != nil {
		s.logger.Warnf("parse Last-Modified for %s: %v", url, err)
		return time.Time{}, false
	}
	return t, true
}

func (s *Syncer) download(ctx context.Context, url, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := f.ReadFrom(resp.Body); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Prune deletes avatar files whose login is no longer in the current set
// and returns how many were removed. Deletion is irreversible; callers must
// guard against invoking it with a partial or empty collection.
func (s *Syncer) Prune(logins []string) int {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0
	}

	keep := make(map[string]struct{}, len(logins))
	for _, login := range logins {
		keep[strings.ToLower(login)] = struct{}{}
	}

	removed := 0
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".png") {
			continue
		}
		stem := strings.ToLower(strings.TrimSuffix(name, ".png"))
		if _, ok := keep[stem]; ok {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
			s.logger.Warnf("remove old avatar %s: %v", name, err)
			continue
		}
		removed++
		s.logger.Infof("removed old avatar: %s", name)
	}
	return removed
}
