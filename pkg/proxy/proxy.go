package proxy

import (
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	xproxy "golang.org/x/net/proxy"
)

// Kind is the outbound transport flavour of a node.
type Kind string

const (
	KindDirect Kind = "direct"
	KindHTTP   Kind = "http"
	KindSOCKS5 Kind = "socks5"
)

// Proxy describes one outbound transport. A nil *Proxy means direct. Shared
// read-only by every outbound call of a node.
type Proxy struct {
	Kind Kind
	URL  string
}

// lineRe matches scheme://[user:pass@]host:port with socks5, http or https
// schemes, the same shape proxy.txt has always used.
var lineRe = regexp.MustCompile(`^(socks5|http|https)://(?:([^:@]+):([^@]+)@)?([^:]+):(\d+)$`)

// Parse parses one proxy line. https collapses into the http kind; the URL
// keeps its original scheme.
func Parse(line string) (*Proxy, error) {
	line = strings.TrimSpace(line)
	m := lineRe.FindStringSubmatch(line)
	if m == nil {
		return nil, fmt.Errorf("invalid proxy format: %q, expected 'socks5://[user:pass@]host:port' or 'http(s)://[user:pass@]host:port'", line)
	}

	kind := KindHTTP
	if strings.EqualFold(m[1], "socks5") {
		kind = KindSOCKS5
	}
	return &Proxy{Kind: kind, URL: line}, nil
}

// String describes the proxy for the dashboard.
func (p *Proxy) String() string {
	if p == nil {
		return "None"
	}
	return fmt.Sprintf("%s (%s)", p.URL, p.Kind)
}

// Transport builds an http.RoundTripper routing through the proxy. A nil
// receiver returns a plain transport (direct).
func (p *Proxy) Transport() (*http.Transport, error) {
	if p == nil || p.Kind == KindDirect {
		return &http.Transport{}, nil
	}

	u, err := url.Parse(p.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy url %q: %w", p.URL, err)
	}

	switch p.Kind {
	case KindHTTP:
		return &http.Transport{Proxy: http.ProxyURL(u)}, nil
	case KindSOCKS5:
		var auth *xproxy.Auth
		if u.User != nil {
			pass, _ := u.User.Password()
			auth = &xproxy.Auth{User: u.User.Username(), Password: pass}
		}
		dialer, err := xproxy.SOCKS5("tcp", u.Host, auth, xproxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("socks5 dialer: %w", err)
		}
		tr := &http.Transport{}
		if cd, ok := dialer.(xproxy.ContextDialer); ok {
			tr.DialContext = cd.DialContext
		}
		return tr, nil
	default:
		return nil, fmt.Errorf("unsupported proxy kind: %s", p.Kind)
	}
}
