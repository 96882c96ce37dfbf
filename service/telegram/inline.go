package telegram

import (
	"github.com/Veetaha/snowpity/service/persist"
)

// InlineQueryResult is any of the inline_query_result_* payloads. Concrete
// structs below cover the cached-file kinds the bot answers with.
type InlineQueryResult interface {
	inlineQueryResult()
}

type InlineQueryResultCachedPhoto struct {
	Type        string `json:"type"` // always "photo"
	ID          string `json:"id"`
	PhotoFileID string `json:"photo_file_id"`
	Caption     string `json:"caption,omitempty"`
	ParseMode   string `json:"parse_mode,omitempty"`
}

type InlineQueryResultCachedVideo struct {
	Type        string `json:"type"` // always "video"
	ID          string `json:"id"`
	VideoFileID string `json:"video_file_id"`
	Title       string `json:"title"`
	Caption     string `json:"caption,omitempty"`
	ParseMode   string `json:"parse_mode,omitempty"`
}

type InlineQueryResultCachedDocument struct {
	Type           string `json:"type"` // always "document"
	ID             string `json:"id"`
	DocumentFileID string `json:"document_file_id"`
	Title          string `json:"title"`
	Caption        string `json:"caption,omitempty"`
	ParseMode      string `json:"parse_mode,omitempty"`
}

type InlineQueryResultCachedMpeg4Gif struct {
	Type        string `json:"type"` // always "mpeg4_gif"
	ID          string `json:"id"`
	Mpeg4FileID string `json:"mpeg4_file_id"`
	Caption     string `json:"caption,omitempty"`
	ParseMode   string `json:"parse_mode,omitempty"`
}

// InlineQueryResultVideo is a by-URL video result, used for the error surface.
type InlineQueryResultVideo struct {
	Type      string `json:"type"` // always "video"
	ID        string `json:"id"`
	VideoURL  string `json:"video_url"`
	MimeType  string `json:"mime_type"`
	ThumbURL  string `json:"thumbnail_url"`
	Title     string `json:"title"`
	Caption   string `json:"caption,omitempty"`
	ParseMode string `json:"parse_mode,omitempty"`
}

// InlineQueryResultArticle is a text-only result, used for help suggestions.
type InlineQueryResultArticle struct {
	Type                string              `json:"type"` // always "article"
	ID                  string              `json:"id"`
	Title               string              `json:"title"`
	Description         string              `json:"description,omitempty"`
	InputMessageContent InputMessageContent `json:"input_message_content"`
}

type InputMessageContent struct {
	MessageText string `json:"message_text"`
	ParseMode   string `json:"parse_mode,omitempty"`
}

func (InlineQueryResultCachedPhoto) inlineQueryResult()    {}
func (InlineQueryResultCachedVideo) inlineQueryResult()    {}
func (InlineQueryResultCachedDocument) inlineQueryResult() {}
func (InlineQueryResultCachedMpeg4Gif) inlineQueryResult() {}
func (InlineQueryResultVideo) inlineQueryResult()          {}
func (InlineQueryResultArticle) inlineQueryResult()        {}

// NewCachedResult builds the inline result matching the kind Telegram stored
// the file as.
func NewCachedResult(id string, file persist.TgFile, title, caption string) InlineQueryResult {
	const parseMode = "MarkdownV2"
	switch file.Kind {
	case persist.TgFileKindPhoto:
		return InlineQueryResultCachedPhoto{Type: "photo", ID: id, PhotoFileID: file.ID, Caption: caption, ParseMode: parseMode}
	case persist.TgFileKindVideo:
		return InlineQueryResultCachedVideo{Type: "video", ID: id, VideoFileID: file.ID, Title: title, Caption: caption, ParseMode: parseMode}
	case persist.TgFileKindMpeg4Gif:
		return InlineQueryResultCachedMpeg4Gif{Type: "mpeg4_gif", ID: id, Mpeg4FileID: file.ID, Caption: caption, ParseMode: parseMode}
	}
	return InlineQueryResultCachedDocument{Type: "document", ID: id, DocumentFileID: file.ID, Title: title, Caption: caption, ParseMode: parseMode}
}
