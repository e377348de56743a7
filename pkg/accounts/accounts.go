package accounts

import (
	"fmt"
	"os"
	"strings"

	"membitnode/pkg/proxy"
)

// Account holds the credentials identifying one node. Immutable after load.
type Account struct {
	ID          int
	AccessToken string // rewards API bearer token
	CSRF        string // timeline API x-csrf-token
	Cookie      string // timeline API session cookie
}

// Validate reports whether every required field is present.
func (a *Account) Validate() error {
	if a.AccessToken == "" {
		return fmt.Errorf("accessToken is required")
	}
	if a.CSRF == "" {
		return fmt.Errorf("csrf is required")
	}
	if a.Cookie == "" {
		return fmt.Errorf("cookie is required")
	}
	return nil
}

// LoadResult carries parsed accounts plus warnings for skipped blocks.
type LoadResult struct {
	Accounts []*Account
	Warnings []string
}

// Load parses an account file: blank-line-separated blocks of key=value
// lines, each block requiring accessToken, csrf and cookie. Invalid blocks
// are skipped with a warning rather than failing the whole file.
func Load(path string) (*LoadResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read account file: %w", err)
	}
	return Parse(string(data)), nil
}

// Parse parses account file content. See Load.
func Parse(content string) *LoadResult {
	result := &LoadResult{}

	blocks := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n\n")
	id := 0
	for i, block := range blocks {
		if strings.TrimSpace(block) == "" {
			continue
		}

		acc := &Account{}
		for _, line := range strings.Split(block, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			key, value, found := strings.Cut(line, "=")
			if !found {
				continue
			}
			key = strings.TrimSpace(key)
			value = strings.TrimSpace(value)
			if value == "" {
				continue
			}
			switch key {
			case "accessToken":
				acc.AccessToken = value
			case "csrf":
				acc.CSRF = value
			case "cookie":
				acc.Cookie = value
			}
		}

		if err := acc.Validate(); err != nil {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("skipping invalid account block %d: %v", i+1, err))
			continue
		}
		id++
		acc.ID = id
		result.Accounts = append(result.Accounts, acc)
	}

	return result
}

// ProxyEntry is one parsed proxy.txt line. Entries with a non-empty Err are
// placeholders that make a node run direct while still surfacing the problem
// in its log pane.
type ProxyEntry struct {
	Proxy *proxy.Proxy
	Err   string
}

// LoadProxies parses a proxy file, one proxy per line. A missing or empty
// file is not an error; the nodes simply run without proxies.
func LoadProxies(path string) []ProxyEntry {
	data, err := os.ReadFile(path)
	if err != nil {
		return []ProxyEntry{{Err: fmt.Sprintf("failed to read proxy file: %v; running without proxy", err)}}
	}
	return ParseProxies(string(data))
}

// ParseProxies parses proxy file content. See LoadProxies.
func ParseProxies(content string) []ProxyEntry {
	var entries []ProxyEntry
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		p, err := proxy.Parse(line)
		if err != nil {
			entries = append(entries, ProxyEntry{Err: fmt.Sprintf("%v, skipping", err)})
			continue
		}
		entries = append(entries, ProxyEntry{Proxy: p})
	}

	valid := 0
	for _, e := range entries {
		if e.Err == "" {
			valid++
		}
	}
	if valid == 0 {
		entries = append(entries, ProxyEntry{Err: "no valid proxies found; running without proxy"})
	}
	return entries
}

// AssignProxy picks the proxy for the account at the given index,
// round-robining entries over accounts the way the node list is built.
func AssignProxy(entries []ProxyEntry, idx int) ProxyEntry {
	if len(entries) == 0 {
		return ProxyEntry{}
	}
	return entries[idx%len(entries)]
}
