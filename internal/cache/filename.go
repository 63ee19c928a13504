package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// maxSlugLen bounds the readable part of a page filename. The hash
// suffix keeps truncated names unique.
const maxSlugLen = 100

// slugCleaner decomposes accented characters and drops the combining
// marks, so paths like "/guides/café" slug to plain ASCII.
var slugCleaner = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Filename derives the page file name for a URL. The name is the
// slugified URL path followed by a short content-independent hash of
// the full URL, so distinct URLs that slug identically (or differ
// only in query parameters) never collide on disk.
func Filename(pageURL string) string {
	slug := slugify(pageURL)
	sum := sha256.Sum256([]byte(pageURL))
	return slug + "-" + hex.EncodeToString(sum[:4]) + ".md"
}

func slugify(pageURL string) string {
	p := pageURL
	if u, err := url.Parse(pageURL); err == nil {
		p = u.Path
	}
	if cleaned, _, err := transform.String(slugCleaner, p); err == nil {
		p = cleaned
	}

	var b strings.Builder
	lastDash := true // suppress a leading dash
	for _, r := range strings.ToLower(p) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
		if b.Len() >= maxSlugLen {
			break
		}
	}

	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return "index"
	}
	return slug
}
