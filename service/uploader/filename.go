package uploader

import (
	"strings"
	"unicode"

	"github.com/Veetaha/snowpity/service/persist"
)

const (
	maxSegmentLen  = 100
	maxFileNameLen = 255
)

// TgFileName computes the filename attached to multipart uploads:
// <platform>-<rating-tags>-<author-names>-<post-id>[-<blob-id>].<ext>.
// Segments are sanitized and capped; empty segments are dropped. The
// extension reflects the processed format, not the source one.
func TgFileName(post persist.Post, blobID persist.BlobID, ext string) string {
	authorNames := make([]string, len(post.Authors))
	for i, author := range post.Authors {
		authorNames[i] = author.Name
	}

	segments := []string{
		string(post.ID.Platform),
		strings.Join(post.Rating.Kinds, "-"),
		strings.Join(authorNames, "-"),
		post.ID.ID,
		string(blobID),
	}

	sanitized := make([]string, 0, len(segments))
	for _, segment := range segments {
		segment = sanitizeSegment(segment)
		if segment != "" {
			sanitized = append(sanitized, segment)
		}
	}

	base := strings.Join(sanitized, "-")
	if maxBase := maxFileNameLen - len(ext) - 1; len(base) > maxBase {
		base = base[:maxBase-3] + "..."
	}

	return base + "." + ext
}

// sanitizeSegment lowercases, turns whitespace into dashes and everything
// outside [a-z0-9-+] into underscores, capping at 100 chars with an ellipsis.
func sanitizeSegment(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))

	var b strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			b.WriteByte('-')
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '+':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	out := b.String()
	if len(out) > maxSegmentLen {
		out = out[:maxSegmentLen] + "..."
	}
	return out
}
