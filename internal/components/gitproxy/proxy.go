// Package gitproxy forwards world-sync traffic to the upstream repository
// host with a fixed credential injected.
//
// The relay owns one upstream account holding every world repository.
// Clients speak plain git HTTP against /git/<repo>; the proxy rewrites the
// path onto the account and substitutes the deployment credential for
// whatever Authorization the caller sent, so clients never hold the token.
package gitproxy

import (
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/havenworlds/haven-relay/internal/components/api"
	"github.com/havenworlds/haven-relay/internal/platform/appctx"
	"github.com/havenworlds/haven-relay/internal/platform/config"
	"github.com/havenworlds/haven-relay/internal/platform/logutil"
)

// PathPrefix is the only path subtree the proxy accepts.
const PathPrefix = "/git"

// Proxy is the /git reverse proxy.
type Proxy struct {
	upstream *url.URL
	account  string
	username string
	token    string
	logger   *slog.Logger
	rp       *httputil.ReverseProxy
}

// New creates a proxy from configuration. The upstream URL is validated at
// config load; a parse failure here is a programming error.
func New(cfg config.GitProxyConfig, logger *slog.Logger) (*Proxy, error) {
	upstream, err := url.Parse(cfg.Upstream)
	if err != nil {
		return nil, err
	}

	p := &Proxy{
		upstream: upstream,
		account:  cfg.Account,
		username: cfg.Username,
		token:    cfg.Token,
		logger:   logutil.NoopIfNil(logger),
	}

	p.rp = &httputil.ReverseProxy{
		Rewrite:      p.rewrite,
		ErrorHandler: p.upstreamError,
	}

	return p, nil
}

// rewrite points the outbound request at the upstream account and swaps in
// the deployment credential. Method, remaining path, query, and body pass
// through untouched.
func (p *Proxy) rewrite(pr *httputil.ProxyRequest) {
	out := pr.Out
	out.URL.Scheme = p.upstream.Scheme
	out.URL.Host = p.upstream.Host
	out.URL.Path = "/" + p.account + strings.TrimPrefix(pr.In.URL.Path, PathPrefix)
	out.URL.RawQuery = pr.In.URL.RawQuery
	out.Host = p.upstream.Host

	// The caller's Authorization is never forwarded, even when we have no
	// credential of our own to put in its place.
	out.Header.Del("Authorization")
	if p.username != "" || p.token != "" {
		out.SetBasicAuth(p.username, p.token)
	}
}

// upstreamError answers 502 and keeps serving; one dead upstream dial must
// never take the relay down.
func (p *Proxy) upstreamError(w http.ResponseWriter, r *http.Request, err error) {
	appctx.GetLogger(r.Context()).Error("git proxy upstream failure",
		"upstream", p.upstream.Host, "error", err)
	api.WriteBadGateway(w)
}

// ServeHTTP proxies requests under PathPrefix and rejects everything else
// before any network activity.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.URL.Path, PathPrefix+"/") {
		api.WriteForbidden(w, api.ReasonForbidden, "forbidden")
		return
	}

	appctx.GetLogger(r.Context()).Info("syncing world",
		"repo", strings.TrimPrefix(r.URL.Path, PathPrefix+"/"))
	p.rp.ServeHTTP(w, r)
}
