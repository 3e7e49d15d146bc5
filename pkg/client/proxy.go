package client

import (
	"net/http"
	"net/url"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/http/httpproxy"
)

// proxyFunc returns the transport proxy selector for cfg. Without explicit
// settings the standard proxy environment variables apply.
func proxyFunc(cfg ProxyConfig) func(*http.Request) (*url.URL, error) {
	if cfg.HTTPProxy == "" && cfg.HTTPSProxy == "" && cfg.NoProxy == "" {
		return http.ProxyFromEnvironment
	}

	env := httpproxy.FromEnvironment()
	if cfg.HTTPProxy != "" {
		env.HTTPProxy = cfg.HTTPProxy
	}
	if cfg.HTTPSProxy != "" {
		env.HTTPSProxy = cfg.HTTPSProxy
	}
	if cfg.NoProxy != "" {
		env.NoProxy = cfg.NoProxy
	}

	selector := env.ProxyFunc()
	return func(req *http.Request) (*url.URL, error) {
		proxyURL, err := selector(req.URL)
		if proxyURL != nil {
			log.Debug().Str("host", req.URL.Host).Str("proxy", proxyURL.Host).Msg("Proxied request")
		}
		return proxyURL, err
	}
}
