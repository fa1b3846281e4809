package orchestrator

import (
	"fmt"
	"regexp"
	"strings"
)

// slugPattern matches the DNS-label-safe subset required of every tenant
// slug: lowercase letters, digits, and hyphens only.
var slugPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// reservedSlugs can never be assigned to a tenant: they collide with
// platform routes or well-known hostnames.
var reservedSlugs = map[string]bool{
	"admin": true, "api": true, "www": true, "platform": true, "gateway": true,
	"system": true, "root": true, "static": true, "assets": true, "health": true,
	"internal": true, "localhost": true, "metrics": true, "status": true,
}

// ValidSlug reports whether slug is an acceptable tenant identifier: the
// safe character set, non-empty, and not reserved. Callers must check
// this before a slug is ever interpolated into routing configuration.
func ValidSlug(slug string) bool {
	if slug == "" || reservedSlugs[slug] {
		return false
	}
	return slugPattern.MatchString(slug)
}

// Slugify derives a safe slug from an arbitrary display name: lowercased,
// non-safe runs collapsed to a single hyphen, leading/trailing hyphens
// trimmed.
func Slugify(name string) string {
	lower := strings.ToLower(name)
	var b strings.Builder
	lastHyphen := false
	for _, r := range lower {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen && b.Len() > 0 {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		out = "tenant"
	}
	return out
}

// UniqueSlug returns base if it is available and not reserved; otherwise
// it deterministically appends -1, -2, ... until exists reports false.
func UniqueSlug(base string, exists func(string) bool) string {
	if !ValidSlug(base) {
		base = Slugify(base)
	}
	if reservedSlugs[base] {
		base = base + "-tenant"
	}
	candidate := base
	for i := 1; exists(candidate); i++ {
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
	return candidate
}
