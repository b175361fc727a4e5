package artifact

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/core-tools/hsu-gamesrv/pkg/errors"
)

// DefaultManifestURL is Mojang's version catalog
const DefaultManifestURL = "https://piston-meta.mojang.com/mc/game/version_manifest_v2.json"

// Download is where a server jar for one version can be fetched from
type Download struct {
	URL  string
	SHA1 string
	Size int64
}

// Provider resolves a download for one distribution kind
type Provider interface {
	Resolve(ctx context.Context, version string) (Download, error)
}

type versionManifest struct {
	Versions []struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	} `json:"versions"`
}

type versionMetadata struct {
	Downloads *struct {
		Server *struct {
			URL  string `json:"url"`
			SHA1 string `json:"sha1"`
			Size int64  `json:"size"`
		} `json:"server"`
	} `json:"downloads"`
}

// VanillaProvider walks Mojang's manifest: version list, then per-version
// metadata, then downloads.server.
type VanillaProvider struct {
	manifestURL string
	client      *http.Client
}

func NewVanillaProvider(manifestURL string, client *http.Client) *VanillaProvider {
	if manifestURL == "" {
		manifestURL = DefaultManifestURL
	}
	return &VanillaProvider{
		manifestURL: manifestURL,
		client:      client,
	}
}

func (p *VanillaProvider) Resolve(ctx context.Context, version string) (Download, error) {
	var manifest versionManifest
	if err := getJSON(ctx, p.client, p.manifestURL, "could not fetch version manifest", &manifest); err != nil {
		return Download{}, err
	}

	metadataURL := ""
	for _, entry := range manifest.Versions {
		if entry.ID == version {
			metadataURL = entry.URL
			break
		}
	}
	if metadataURL == "" {
		return Download{}, errors.NewVersionNotFoundError("vanilla version not found: "+version, nil).
			WithContext("version", version)
	}

	var metadata versionMetadata
	if err := getJSON(ctx, p.client, metadataURL, "could not fetch version metadata", &metadata); err != nil {
		return Download{}, err
	}

	if metadata.Downloads == nil || metadata.Downloads.Server == nil || metadata.Downloads.Server.URL == "" {
		return Download{}, errors.NewNoDownloadAvailableError("no server download available for version "+version, nil).
			WithContext("version", version)
	}

	server := metadata.Downloads.Server
	return Download{URL: server.URL, SHA1: server.SHA1, Size: server.Size}, nil
}

// get performs a GET and fails with an upstream error on transport
// failures and non-2xx statuses. The caller closes the body.
func get(ctx context.Context, client *http.Client, url string, what string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.NewUpstreamUnavailableError(what, err).WithContext("url", url)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.NewUpstreamUnavailableError(what, err).WithContext("url", url)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, errors.NewUpstreamUnavailableError(fmt.Sprintf("%s (HTTP %d)", what, resp.StatusCode), nil).
			WithContext("url", url).
			WithContext("status", resp.StatusCode)
	}
	return resp, nil
}

func getJSON(ctx context.Context, client *http.Client, url string, what string, out interface{}) error {
	resp, err := get(ctx, client, url, what)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.NewUpstreamUnavailableError(what+": malformed response", err).WithContext("url", url)
	}
	return nil
}
