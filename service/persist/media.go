package persist

import (
	"fmt"
)

// AuthorKind is the author's relation to the post, when the platform states one.
type AuthorKind int

const (
	AuthorKindUnspecified AuthorKind = iota
	AuthorKindArtist
	AuthorKindEditor
	AuthorKindPrompter
)

func (k AuthorKind) String() string {
	switch k {
	case AuthorKindArtist:
		return "artist"
	case AuthorKindEditor:
		return "editor"
	case AuthorKindPrompter:
		return "prompter"
	}
	return "author"
}

// Author is one creator credited on a post.
type Author struct {
	Name   string
	WebURL string
	Kind   AuthorKind
}

// Rating is the post's safety rating. A post is NSFW when any rating tag
// other than plain "safe" applies; Kinds then lists every rating tag.
type Rating struct {
	NSFW  bool
	Kinds []string
}

func Sfw() Rating {
	return Rating{}
}

func Nsfw(kinds ...string) Rating {
	return Rating{NSFW: true, Kinds: kinds}
}

// RepKind is the concrete encoding of one representation.
type RepKind int

const (
	RepKindImageJpeg RepKind = iota
	RepKindImagePng
	RepKindImageSvg
	RepKindVideoMp4
	// RepKindAnimationMp4 is a soundless mp4 displayed as a gif-equivalent.
	RepKindAnimationMp4
	RepKindAnimationGif
	RepKindVideoWebm
)

func (k RepKind) String() string {
	switch k {
	case RepKindImageJpeg:
		return "image/jpeg"
	case RepKindImagePng:
		return "image/png"
	case RepKindImageSvg:
		return "image/svg"
	case RepKindVideoMp4:
		return "video/mp4"
	case RepKindAnimationMp4:
		return "animation/mp4"
	case RepKindAnimationGif:
		return "animation/gif"
	case RepKindVideoWebm:
		return "video/webm"
	}
	return fmt.Sprintf("unknown(%d)", int(k))
}

// IsImage reports whether the representation is a still image.
func (k RepKind) IsImage() bool {
	return k == RepKindImageJpeg || k == RepKindImagePng || k == RepKindImageSvg
}

// Ext is the file extension of the representation after any processing the
// upload strategy applies (animated and video kinds always end up as mp4).
func (k RepKind) Ext() string {
	switch k {
	case RepKindImageJpeg:
		return "jpg"
	case RepKindImagePng:
		return "png"
	case RepKindImageSvg:
		return "svg"
	}
	return "mp4"
}

// SizeHint is an optimistic upper bound on a representation's size in bytes.
// Zero means unknown. It is never trusted as the actual size: content-length
// at download time always overrides.
type SizeHint int64

const SizeUnknown SizeHint = 0

func MaxBytes(n int64) SizeHint {
	return SizeHint(n)
}

func (s SizeHint) Known() bool {
	return s > 0
}

// AtMost reports whether the hint guarantees the blob fits in n bytes.
// An unknown hint guarantees nothing.
func (s SizeHint) AtMost(n int64) bool {
	return s.Known() && int64(s) <= n
}

// Exceeds reports whether the hint already rules out a bound of n bytes.
func (s SizeHint) Exceeds(n int64) bool {
	return s.Known() && int64(s) > n
}

// Dimensions are pixel dimensions, when the platform reports them.
type Dimensions struct {
	Width  int
	Height int
}

func (d Dimensions) AspectRatio() float64 {
	if d.Height == 0 {
		return 0
	}
	return float64(d.Width) / float64(d.Height)
}

// Representation is one concrete URL+encoding of a blob.
type Representation struct {
	Kind       RepKind
	Dimensions *Dimensions
	SizeHint   SizeHint
	URL        string
}

// Blob is one logical media item attached to a post. Representations are
// ordered by preference: implementations try them in order and stop at the
// first success.
type Blob struct {
	ID   BlobID
	Reps []Representation
}

// Best returns the preferred representation.
func (b Blob) Best() Representation {
	return b.Reps[0]
}

// Post is a normalized post constructed by a platform adapter and consumed
// within one resolve call.
type Post struct {
	ID      PostID
	Authors []Author
	WebURL  string
	Rating  Rating
	Blobs   []Blob
}

// TgFileKind is what Telegram actually stored, which may differ from what was
// requested (e.g. a video uploaded as a document).
type TgFileKind int

const (
	TgFileKindPhoto TgFileKind = iota
	TgFileKindDocument
	TgFileKindVideo
	TgFileKindMpeg4Gif
)

func (k TgFileKind) String() string {
	switch k {
	case TgFileKindPhoto:
		return "photo"
	case TgFileKindDocument:
		return "document"
	case TgFileKindVideo:
		return "video"
	case TgFileKindMpeg4Gif:
		return "mpeg4_gif"
	}
	return fmt.Sprintf("unknown(%d)", int(k))
}

// TgFile is a Telegram-native file handle living in the cache channel.
type TgFile struct {
	ID   string
	Kind TgFileKind
}

// CachedBlob is the persisted record of one uploaded blob. Created once per
// (post, blob), read-only thereafter.
type CachedBlob struct {
	BlobID BlobID
	File   TgFile
}

// CachedPost is the result of a resolve: the post metadata plus a Telegram
// file handle per blob, in the post's blob order.
type CachedPost struct {
	Post   Post
	Mirror string
	Blobs  []CachedBlob
}
