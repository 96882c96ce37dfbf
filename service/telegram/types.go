package telegram

import (
	"github.com/Veetaha/snowpity/service/persist"
)

// Update is one incoming event delivered to the webhook. Only the fields the
// bot dispatches on are modeled; unknown fields are ignored.
type Update struct {
	UpdateID    int64        `json:"update_id"`
	InlineQuery *InlineQuery `json:"inline_query,omitempty"`
}

// InlineQuery is a user typing into the inline bar in any chat.
type InlineQuery struct {
	ID    string    `json:"id"`
	From  QueryUser `json:"from"`
	Query string    `json:"query"`
}

type QueryUser struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	Username  string `json:"username"`
}

// Message is a sent message. Only media fields relevant to file-handle
// extraction are modeled.
type Message struct {
	MessageID int64        `json:"message_id"`
	Photo     []PhotoSize  `json:"photo,omitempty"`
	Document  *MediaObject `json:"document,omitempty"`
	Video     *MediaObject `json:"video,omitempty"`
	Animation *MediaObject `json:"animation,omitempty"`
}

type PhotoSize struct {
	FileID   string `json:"file_id"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	FileSize int64  `json:"file_size,omitempty"`
}

type MediaObject struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	FileSize int64  `json:"file_size,omitempty"`
}

// File extracts the stored file handle from the message by matching on the
// response shape. Animation is checked before Document: Telegram sets both
// for gif-like uploads and the animation handle is the displayable one. The
// recorded kind is what Telegram actually stored, not what was requested.
func (m *Message) File(requested persist.TgFileKind) (persist.TgFile, error) {
	switch {
	case m.Animation != nil:
		return persist.TgFile{ID: m.Animation.FileID, Kind: persist.TgFileKindMpeg4Gif}, nil
	case m.Video != nil:
		return persist.TgFile{ID: m.Video.FileID, Kind: persist.TgFileKindVideo}, nil
	case m.Document != nil:
		return persist.TgFile{ID: m.Document.FileID, Kind: persist.TgFileKindDocument}, nil
	case len(m.Photo) > 0:
		largest := m.Photo[0]
		for _, size := range m.Photo[1:] {
			if size.Width*size.Height > largest.Width*largest.Height {
				largest = size
			}
		}
		return persist.TgFile{ID: largest.FileID, Kind: persist.TgFileKindPhoto}, nil
	}
	return persist.TgFile{}, ErrUnexpectedMediaKind{Expected: requested}
}
