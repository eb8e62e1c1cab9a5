package bootcfg

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/vk/bootrt/internal/ctxlog"
)

// Resolver obtains and merges boot configuration. It is safe for reuse
// across boots; all per-boot state lives in the arguments.
type Resolver struct {
	// Client issues the document fetch. Defaults to http.DefaultClient.
	Client *http.Client
	// OnConfigLoaded, when set, is invoked once the merged configuration
	// is available and before any asset fetch begins.
	OnConfigLoaded func(*BootConfig)
}

// Resolve produces the effective BootConfig from an optional source
// locator (HTTP(S) URL or local file path) and an optional inline overlay.
// Inline fields always win over fetched-document fields.
func (r *Resolver) Resolve(ctx context.Context, source string, inline *Overlay) (*BootConfig, error) {
	logger := ctxlog.FromContext(ctx)

	if source == "" && inline == nil {
		return nil, fmt.Errorf("%w: no configuration source or inline object supplied", ErrConfigUnavailable)
	}

	cfg := &BootConfig{}
	if source != "" {
		doc, err := r.fetchDocument(ctx, source)
		if err != nil {
			return nil, err
		}
		doc.Apply(cfg)
		logger.Debug("Boot configuration document loaded.", "source", source)
	}
	inline.Apply(cfg)

	if cfg.BaseURL == "" {
		cfg.BaseURL = baseOf(source)
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}

	logger.Debug("Boot configuration resolved.",
		"mainAssembly", cfg.MainAssembly,
		"sources", len(cfg.Sources),
		"globalization", cfg.GlobalizationMode,
	)
	if r.OnConfigLoaded != nil {
		r.OnConfigLoaded(cfg)
	}
	return cfg, nil
}

// fetchDocument retrieves and decodes one configuration document.
// Retrieval failures map to ErrConfigUnavailable, decode failures to
// ErrConfigMalformed.
func (r *Resolver) fetchDocument(ctx context.Context, source string) (*Overlay, error) {
	var raw []byte
	if isHTTP(source) {
		client := r.Client
		if client == nil {
			client = http.DefaultClient
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfigUnavailable, err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: fetching %s: %v", ErrConfigUnavailable, source, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("%w: fetching %s: unexpected status %s", ErrConfigUnavailable, source, resp.Status)
		}
		raw, err = io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: reading %s: %v", ErrConfigUnavailable, source, err)
		}
	} else {
		var err error
		raw, err = os.ReadFile(source)
		if err != nil {
			return nil, fmt.Errorf("%w: reading %s: %v", ErrConfigUnavailable, source, err)
		}
	}

	doc := &Overlay{}
	if err := json.Unmarshal(raw, doc); err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", ErrConfigMalformed, source, err)
	}
	return doc, nil
}

func isHTTP(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// baseOf derives the application directory from the location the
// configuration document was fetched from.
func baseOf(source string) string {
	if source == "" {
		return "./"
	}
	if isHTTP(source) {
		u, err := url.Parse(source)
		if err != nil {
			return "./"
		}
		u.Path = path.Dir(u.Path)
		u.RawQuery = ""
		u.Fragment = ""
		return strings.TrimSuffix(u.String(), "/")
	}
	return path.Dir(source)
}
