// Package linkscan extracts and normalizes URLs for the link violation rule.
package linkscan

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/idna"
)

var urlRegex = regexp.MustCompile(`https?://[^\s]+`)

// Domains commonly used to mask link destinations. A bare mention of one of
// these counts as a link even without a scheme prefix.
var shortenerDomains = map[string]struct{}{
	"bit.ly":       {},
	"tinyurl.com":  {},
	"t.co":         {},
	"goo.gl":       {},
	"is.gd":        {},
	"cutt.ly":      {},
	"rb.gy":        {},
	"shorturl.at":  {},
	"discord.gift": {},
}

func ExtractURLs(content string) []string {
	return urlRegex.FindAllString(content, -1)
}

// NormalizeHost lowercases and IDNA-encodes the hostname of a raw URL.
func NormalizeHost(raw string) (string, error) {
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", err
	}

	host := strings.ToLower(parsed.Hostname())
	asciiHost, err := idna.ToASCII(host)
	if err == nil {
		host = asciiHost
	}
	return host, nil
}

// ContainsLink reports whether the content carries an http(s) URL or a bare
// known-shortener domain.
func ContainsLink(content string) bool {
	if len(ExtractURLs(content)) > 0 {
		return true
	}
	lower := strings.ToLower(content)
	for domain := range shortenerDomains {
		if containsDomain(lower, domain) {
			return true
		}
	}
	return false
}

func IsShortener(host string) bool {
	_, ok := shortenerDomains[strings.ToLower(host)]
	return ok
}

// containsDomain matches the domain only at word boundaries so that
// "habit.ly.example" style substrings do not trip the rule.
func containsDomain(content, domain string) bool {
	idx := 0
	for {
		found := strings.Index(content[idx:], domain)
		if found < 0 {
			return false
		}
		start := idx + found
		end := start + len(domain)
		beforeOK := start == 0 || isBoundary(content[start-1])
		afterOK := end == len(content) || isBoundary(content[end]) || content[end] == '/'
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isBoundary(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '(', ')', '[', ']', '<', '>', ',', ';', '"', '\'':
		return true
	}
	return false
}
