package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Veetaha/snowpity/service/persist"
	"github.com/Veetaha/snowpity/util"
	"github.com/Veetaha/snowpity/util/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testRetry = retry.Retry{MinWait: time.Millisecond, MaxWait: 2 * time.Millisecond, MaxRetries: 2}

func TestMessageFile(t *testing.T) {
	t.Run("animation wins over document", func(t *testing.T) {
		msg := Message{
			Animation: &MediaObject{FileID: "anim"},
			Document:  &MediaObject{FileID: "doc"},
		}
		file, err := msg.File(persist.TgFileKindMpeg4Gif)
		require.NoError(t, err)
		assert.Equal(t, persist.TgFile{ID: "anim", Kind: persist.TgFileKindMpeg4Gif}, file)
	})

	t.Run("largest photo size is picked", func(t *testing.T) {
		msg := Message{Photo: []PhotoSize{
			{FileID: "s", Width: 90, Height: 90},
			{FileID: "l", Width: 800, Height: 600},
			{FileID: "m", Width: 320, Height: 240},
		}}
		file, err := msg.File(persist.TgFileKindPhoto)
		require.NoError(t, err)
		assert.Equal(t, "l", file.ID)
	})

	t.Run("document records actual kind on mismatch", func(t *testing.T) {
		msg := Message{Document: &MediaObject{FileID: "doc"}}
		file, err := msg.File(persist.TgFileKindPhoto)
		require.NoError(t, err)
		assert.Equal(t, persist.TgFileKindDocument, file.Kind)
	})

	t.Run("no media is an error", func(t *testing.T) {
		msg := Message{}
		_, err := msg.File(persist.TgFileKindPhoto)
		assert.True(t, util.ErrorAs[ErrUnexpectedMediaKind](err))
	})
}

func TestSendPhotoByURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bottok/sendPhoto", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "42", r.PostForm.Get("chat_id"))
		assert.Equal(t, "https://example.com/a.jpg", r.PostForm.Get("photo"))
		fmt.Fprint(w, `{"ok":true,"result":{"message_id":5,"photo":[{"file_id":"ph","width":1,"height":1}]}}`)
	}))
	defer server.Close()

	client := NewClient("tok", WithAPIBase(server.URL), WithRetry(testRetry))
	msg, err := client.SendPhoto(context.Background(), 42, FileFromURL("https://example.com/a.jpg"))
	require.NoError(t, err)
	assert.EqualValues(t, 5, msg.MessageID)
}

func TestAPIErrorSurfacesAsErrAPI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ok":false,"error_code":413,"description":"Request Entity Too Large"}`)
	}))
	defer server.Close()

	client := NewClient("tok", WithAPIBase(server.URL), WithRetry(testRetry))
	_, err := client.SendDocument(context.Background(), 42, FileFromURL("https://example.com/a.bin"))
	require.Error(t, err)

	assert.True(t, util.ErrorAs[ErrAPI](err))
	assert.Contains(t, err.Error(), "Request Entity Too Large")
}

func TestRateLimitIsRetried(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"ok":false,"error_code":429,"description":"Too Many Requests"}`)
			return
		}
		fmt.Fprint(w, `{"ok":true,"result":{"message_id":1,"video":{"file_id":"vid"}}}`)
	}))
	defer server.Close()

	client := NewClient("tok", WithAPIBase(server.URL), WithRetry(testRetry))
	msg, err := client.SendVideo(context.Background(), 42, FileFromURL("https://example.com/a.mp4"))
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, "vid", msg.Video.FileID)
}

func TestAnswerInlineQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "q1", r.PostForm.Get("inline_query_id"))
		assert.Contains(t, r.PostForm.Get("results"), `"photo_file_id":"ph"`)
		fmt.Fprint(w, `{"ok":true,"result":true}`)
	}))
	defer server.Close()

	client := NewClient("tok", WithAPIBase(server.URL), WithRetry(testRetry))
	results := []InlineQueryResult{
		NewCachedResult("r1", persist.TgFile{ID: "ph", Kind: persist.TgFileKindPhoto}, "title", "caption"),
	}
	require.NoError(t, client.AnswerInlineQuery(context.Background(), "q1", results))
}
