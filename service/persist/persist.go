package persist

import (
	"context"
	"fmt"
)

// Platform identifies one supported posting platform.
type Platform string

const (
	PlatformDerpibooru Platform = "derpibooru"
	PlatformPonybooru  Platform = "ponybooru"
	PlatformPonerpics  Platform = "ponerpics"
	PlatformManebooru  Platform = "manebooru"
	PlatformFurbooru   Platform = "furbooru"
	PlatformTwibooru   Platform = "twibooru"
	PlatformTwitter    Platform = "twitter"
	PlatformDeviantArt Platform = "deviantart"
)

func (p Platform) String() string {
	return string(p)
}

// DisplayName is the capitalized platform name used in user-facing captions.
func (p Platform) DisplayName() string {
	switch p {
	case PlatformDerpibooru:
		return "Derpibooru"
	case PlatformPonybooru:
		return "Ponybooru"
	case PlatformPonerpics:
		return "Ponerpics"
	case PlatformManebooru:
		return "Manebooru"
	case PlatformFurbooru:
		return "Furbooru"
	case PlatformTwibooru:
		return "Twibooru"
	case PlatformTwitter:
		return "Twitter"
	case PlatformDeviantArt:
		return "DeviantArt"
	}
	return string(p)
}

// RequestID is the identity parsed from a user query URL. It is the unit of
// request coalescing: two queries with equal RequestIDs resolve once.
type RequestID struct {
	Platform Platform
	ID       string
}

func (r RequestID) String() string {
	return fmt.Sprintf("%s:%s", r.Platform, r.ID)
}

// PostID is the canonical post identity reported back by the platform. For
// every supported platform a request resolves to exactly one post, so the
// shape matches RequestID; the adapter still sets it from the response.
type PostID struct {
	Platform Platform
	ID       string
}

func (p PostID) String() string {
	return fmt.Sprintf("%s:%s", p.Platform, p.ID)
}

// BlobID identifies one blob within a post. Empty for platforms where a post
// carries exactly one blob; a media-key string on Twitter.
type BlobID string

// User is the messaging-platform user a resolution is performed for.
type User struct {
	ID        int64
	Username  string
	FirstName string
}

// DisplayName prefers the first name and falls back to the username. The
// caption layer escapes it before rendering markdown.
func (u User) DisplayName() string {
	if u.FirstName != "" {
		return u.FirstName
	}
	return u.Username
}

// ResolveRequest is the single entry point payload of the posting cache
// service. Mirror is display-only: it records the mirror hostname the user
// typed so their result links through the same host.
type ResolveRequest struct {
	RequestedBy User
	ID          RequestID
	Mirror      string
}

// TgMediaCacheRepository is a durable map from (platform, post, blob) to the
// Telegram file uploaded for it. Inserts are insert-or-ignore: the first
// writer wins and duplicates are logically identical.
type TgMediaCacheRepository interface {
	GetByPost(ctx context.Context, postID PostID) ([]CachedBlob, error)
	Insert(ctx context.Context, postID PostID, blob CachedBlob) error
}

// ErrPostHasNoMedia is a user-facing error: the post exists but carries no
// uploadable blobs.
type ErrPostHasNoMedia struct {
	PostID PostID
}

func (e ErrPostHasNoMedia) Error() string {
	return fmt.Sprintf("post %s has no media", e.PostID)
}
