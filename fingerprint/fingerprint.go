// Package fingerprint derives the stable identities used for deduplication:
// a content hash over normalized text and a URL identity per item.
package fingerprint

import (
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// ContentHashLength is the number of hex characters kept from the digest.
const ContentHashLength = 12

// Fingerprint is the pair used for novelty checks. Synthetic identities are
// derived from the title and are a weaker tier than a real URL.
type Fingerprint struct {
	URLIdentity string
	ContentHash string
	Synthetic   bool
}

// Options controls how the content hash is computed.
type Options struct {
	// PrefixLength bounds the hash input to title + the first N runes of
	// content. Zero hashes the full content.
	PrefixLength int
}

// New builds the fingerprint for an item. rawURL may be empty, in which case
// a synthetic identity is derived from base and title.
func New(rawURL, base, title, content string, opts Options) Fingerprint {
	fp := Fingerprint{}
	if opts.PrefixLength > 0 {
		fp.ContentHash = BoundedContentHash(title, content, opts.PrefixLength)
	} else {
		fp.ContentHash = ContentHash(content)
	}

	if strings.TrimSpace(rawURL) == "" {
		fp.URLIdentity = SyntheticIdentity(base, title)
		fp.Synthetic = true
		return fp
	}
	fp.URLIdentity = NormalizeURL(rawURL)
	return fp
}

// ContentHash hashes the lower-cased, whitespace-collapsed content. Two
// bodies differing only in whitespace or case hash identically.
func ContentHash(content string) string {
	canonical := strings.ToLower(strings.Join(strings.Fields(content), " "))
	return shortMD5(canonical, ContentHashLength)
}

// BoundedContentHash hashes the title plus the first n runes of content.
func BoundedContentHash(title, content string, n int) string {
	collapsed := strings.Join(strings.Fields(content), " ")
	runes := []rune(collapsed)
	if len(runes) > n {
		collapsed = string(runes[:n])
	}
	return ContentHash(title + " " + collapsed)
}

// SyntheticIdentity returns base#news_<8 hex of md5(title)> for sources that
// have no stable per-item URL.
func SyntheticIdentity(base, title string) string {
	return base + "#news_" + shortMD5(title, 8)
}

// IsSynthetic reports whether identity was produced by SyntheticIdentity.
func IsSynthetic(identity string) bool {
	return strings.Contains(identity, "#news_")
}

// RecordID returns the 8 hex character record id for a URL.
func RecordID(rawURL string) string {
	return shortMD5(rawURL, 8)
}

// SourceHash returns the 12 hex character source hash used in record
// filenames and the "source" field.
func SourceHash(identifier string) string {
	return shortMD5(identifier, 12)
}

// NormalizeURL canonicalizes an absolute URL so trivially different spellings
// share one identity: lower-case scheme and host, no fragment, sorted query,
// no trailing slash on non-root paths. Unparseable input is returned trimmed.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""

	if (u.Scheme == "http" && strings.HasSuffix(u.Host, ":80")) ||
		(u.Scheme == "https" && strings.HasSuffix(u.Host, ":443")) {
		u.Host = u.Host[:strings.LastIndex(u.Host, ":")]
	}

	if len(u.Path) > 1 {
		u.Path = strings.TrimRight(u.Path, "/")
		u.RawPath = ""
	}

	if u.RawQuery != "" {
		q := u.Query()
		keys := make([]string, 0, len(q))
		for k := range q {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var parts []string
		for _, k := range keys {
			vals := q[k]
			sort.Strings(vals)
			for _, v := range vals {
				parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(v))
			}
		}
		u.RawQuery = strings.Join(parts, "&")
	}

	return u.String()
}

func shortMD5(s string, n int) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])[:n]
}
