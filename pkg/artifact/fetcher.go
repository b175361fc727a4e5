// Package artifact guarantees a server jar exists before a start, fetching
// it from the distribution's catalog when possible.
package artifact

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/core-tools/hsu-gamesrv/pkg/domain"
	"github.com/core-tools/hsu-gamesrv/pkg/errors"
	"github.com/core-tools/hsu-gamesrv/pkg/logging"
	"github.com/core-tools/hsu-gamesrv/pkg/metrics"
)

type Options struct {
	ManifestURL string
	HTTPTimeout time.Duration
	HTTPClient  *http.Client
	Metrics     metrics.Collector
}

// Target is the jar a start needs. Pinned targets come from an operator
// override and are never downloaded.
type Target struct {
	Path   string
	Pinned bool
}

// ProgressFunc receives human-readable progress lines for the server log
type ProgressFunc func(serverID string, format string, args ...interface{})

type Fetcher struct {
	providers map[domain.Kind]Provider
	client    *http.Client
	metrics   metrics.Collector
	logger    logging.Logger
}

func NewFetcher(options Options, logger logging.Logger) *Fetcher {
	client := options.HTTPClient
	if client == nil {
		timeout := options.HTTPTimeout
		if timeout <= 0 {
			timeout = 5 * time.Minute
		}
		client = &http.Client{Timeout: timeout}
	}

	collector := options.Metrics
	if collector == nil {
		collector = metrics.NewNoopCollector()
	}

	f := &Fetcher{
		providers: make(map[domain.Kind]Provider),
		client:    client,
		metrics:   collector,
		logger:    logger,
	}
	f.RegisterProvider(domain.KindVanilla, NewVanillaProvider(options.ManifestURL, client))
	return f
}

// RegisterProvider enables automatic provisioning for another kind
func (f *Fetcher) RegisterProvider(kind domain.Kind, provider Provider) {
	f.providers[kind] = provider
}

// Supports reports whether kind can be provisioned automatically
func (f *Fetcher) Supports(kind domain.Kind) bool {
	_, ok := f.providers[kind]
	return ok
}

// EnsureArtifact returns immediately when the target exists. Otherwise it
// downloads the jar for def's kind and version into target.Path.
func (f *Fetcher) EnsureArtifact(ctx context.Context, def domain.ServerDefinition, target Target, progress ProgressFunc) error {
	exists, err := fileExists(target.Path)
	if err != nil {
		return errors.NewIOError("failed to check server jar", err).WithContext("path", target.Path)
	}
	if exists {
		return nil
	}

	if target.Pinned {
		return errors.NewArtifactMissingError("server jar override points to missing file: "+target.Path, nil).
			WithContext("server_id", def.ID).
			WithContext("path", target.Path)
	}

	provider, ok := f.providers[def.Kind]
	if !ok {
		return errors.NewUnsupportedDistributionError(
			fmt.Sprintf("automatic install is only enabled for %s right now (received: %s)", f.supportedKinds(), def.Kind), nil).
			WithContext("server_id", def.ID).
			WithContext("kind", string(def.Kind))
	}

	if progress == nil {
		progress = func(string, string, ...interface{}) {}
	}

	f.logger.Infof("Downloading server jar, server: %s, kind: %s, version: %s", def.ID, def.Kind, def.Version)
	progress(def.ID, "downloading %s %s", def.Kind, def.Version)

	err = f.download(ctx, provider, def.Version, target.Path)
	f.metrics.ArtifactDownload(def.Kind, err)
	if err != nil {
		f.logger.Errorf("Server jar download failed, server: %s, error: %v", def.ID, err)
		progress(def.ID, "download failed: %v", err)
		return err
	}

	f.logger.Infof("Server jar saved, server: %s, path: %s", def.ID, target.Path)
	progress(def.ID, "%s jar saved at %s", def.Kind, target.Path)
	return nil
}

func (f *Fetcher) download(ctx context.Context, provider Provider, version string, path string) error {
	dl, err := provider.Resolve(ctx, version)
	if err != nil {
		return err
	}

	resp, err := get(ctx, f.client, dl.URL, "failed to download server jar")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.NewIOError("failed to create server directory", err).WithContext("path", path)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".server-jar-*")
	if err != nil {
		return errors.NewIOError("failed to create temporary jar file", err).WithContext("path", path)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	hash := sha1.New()
	_, copyErr := io.Copy(io.MultiWriter(tmp, hash), resp.Body)
	closeErr := tmp.Close()
	if copyErr != nil {
		return errors.NewUpstreamUnavailableError("failed to download server jar", copyErr).WithContext("url", dl.URL)
	}
	if closeErr != nil {
		return errors.NewIOError("failed to write server jar", closeErr).WithContext("path", tmpPath)
	}

	if dl.SHA1 != "" {
		sum := hex.EncodeToString(hash.Sum(nil))
		if !strings.EqualFold(sum, dl.SHA1) {
			return errors.NewUpstreamUnavailableError("downloaded server jar failed checksum verification", nil).
				WithContext("expected_sha1", dl.SHA1).
				WithContext("actual_sha1", sum)
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return errors.NewIOError("failed to move server jar into place", err).WithContext("path", path)
	}
	return nil
}

func (f *Fetcher) supportedKinds() string {
	kinds := make([]string, 0, len(f.providers))
	for kind := range f.providers {
		kinds = append(kinds, string(kind))
	}
	sort.Strings(kinds)
	return strings.Join(kinds, ", ")
}

func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}
