package server

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/Veetaha/snowpity/service/persist"
)

// buildCaption assembles the MarkdownV2 caption attached to every returned
// blob: source link, author links, NSFW tags, the user's comment, the
// requester mention and the stored-kind suffix.
func buildCaption(cached persist.CachedPost, requester persist.User, comment string, kind persist.TgFileKind) string {
	post := cached.Post

	var b strings.Builder

	fmt.Fprintf(&b, "[Source \\(%s\\)](%s)",
		escapeMarkdown(post.ID.Platform.DisplayName()),
		escapeMarkdownURL(sourceURL(post.WebURL, cached.Mirror)))

	if len(post.Authors) > 0 {
		b.WriteString(" by ")
		for i, author := range post.Authors {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(authorLink(author))
		}
	}

	if !post.Rating.NSFW {
		// SFW posts carry no rating parenthetical at all.
	} else if len(post.Rating.Kinds) > 0 {
		fmt.Fprintf(&b, "\n\\(NSFW: %s\\)", escapeMarkdown(strings.Join(post.Rating.Kinds, ", ")))
	} else {
		b.WriteString("\n\\(NSFW\\)")
	}

	if comment != "" {
		b.WriteString("\n")
		b.WriteString(escapeMarkdown(comment))
	}

	fmt.Fprintf(&b, "\nrequested by [%s](tg://user?id=%d)", escapeMarkdown(requester.DisplayName()), requester.ID)
	fmt.Fprintf(&b, "\n_uploaded as %s_", escapeMarkdown(kind.String()))

	return b.String()
}

func authorLink(author persist.Author) string {
	name := author.Name
	if author.Kind != persist.AuthorKindUnspecified && author.Kind != persist.AuthorKindArtist {
		name = fmt.Sprintf("%s (%s)", author.Name, author.Kind)
	}
	if author.WebURL == "" {
		return escapeMarkdown(name)
	}
	return fmt.Sprintf("[%s](%s)", escapeMarkdown(name), escapeMarkdownURL(author.WebURL))
}

// sourceURL rewrites the post's canonical URL onto the mirror host the user
// originally typed, so their result links through the same mirror.
func sourceURL(webURL, mirror string) string {
	if mirror == "" {
		return webURL
	}
	u, err := url.Parse(webURL)
	if err != nil {
		return webURL
	}
	u.Host = mirror
	return u.String()
}

// escapeMarkdown escapes every character MarkdownV2 treats as markup in
// regular text.
func escapeMarkdown(s string) string {
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(`\_*[]()~`+"`"+`>#+-=|{}.!`, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// escapeMarkdownURL escapes the characters that terminate an inline link URL.
func escapeMarkdownURL(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `)`, `\)`)
}
