package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Veetaha/snowpity/service/logger"
	"github.com/Veetaha/snowpity/service/persist"
	"github.com/Veetaha/snowpity/service/platform"
	"github.com/Veetaha/snowpity/service/resolver"
	sentryutil "github.com/Veetaha/snowpity/service/sentry"
	"github.com/Veetaha/snowpity/service/telegram"
	"github.com/Veetaha/snowpity/util"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// resolveTimeout bounds one inline query end to end, including downloads and
// transcodes of large media.
const resolveTimeout = 5 * time.Minute

// The error surface is a short looping clip so the user sees that something
// happened even in chats that collapse article results.
const (
	errVideoURL = "https://raw.githubusercontent.com/Veetaha/snowpity/master/assets/error.mp4"
	errThumbURL = "https://raw.githubusercontent.com/Veetaha/snowpity/master/assets/error-thumb.jpg"
)

type handler struct {
	tg       *telegram.Client
	registry *platform.Registry
	resolver *resolver.Resolver
	botToken string
}

func newHandler(tg *telegram.Client, registry *platform.Registry, res *resolver.Resolver, botToken string) *handler {
	return &handler{tg: tg, registry: registry, resolver: res, botToken: botToken}
}

// handleUpdate is the webhook endpoint. The path token is the shared secret
// registered with setWebhook; anything else is noise from the internet.
func (h *handler) handleUpdate(c *gin.Context) {
	if c.Param("token") != h.botToken {
		c.AbortWithStatus(http.StatusForbidden)
		return
	}

	var update telegram.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}

	// The webhook must return fast; the answer goes out via answerInlineQuery,
	// not the HTTP response, so resolution runs detached.
	if update.InlineQuery != nil {
		go h.handleInlineQuery(*update.InlineQuery)
	}

	c.Status(http.StatusOK)
}

func (h *handler) handleInlineQuery(query telegram.InlineQuery) {
	ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
	defer cancel()
	ctx = logger.NewContextWithFields(ctx, logrus.Fields{
		"inlineQuery": query.ID,
		"user":        query.From.ID,
	})
	defer func() {
		if p := recover(); p != nil {
			sentryutil.ReportError(ctx, fmt.Errorf("inline query handler panicked: %v", p))
		}
	}()

	urlPart, comment := splitQueryText(query.Query)

	parsed, ok := h.registry.ParseQuery(urlPart)
	if !ok {
		h.answer(ctx, query.ID, []telegram.InlineQueryResult{helpResult()})
		return
	}

	requester := persist.User{ID: query.From.ID, Username: query.From.Username, FirstName: query.From.FirstName}
	cached, err := h.resolver.CachePost(ctx, persist.ResolveRequest{
		RequestedBy: requester,
		ID:          parsed.ID,
		Mirror:      parsed.Origin,
	})
	if err == nil && len(cached.Blobs) == 0 {
		err = persist.ErrPostHasNoMedia{PostID: cached.Post.ID}
	}
	if err != nil {
		logger.For(ctx).WithError(err).Error("inline query failed")
		h.answer(ctx, query.ID, []telegram.InlineQueryResult{errorResult(ctx, err)})
		return
	}

	results := util.MapWithoutError(cached.Blobs, func(blob persist.CachedBlob) telegram.InlineQueryResult {
		caption := buildCaption(cached, requester, comment, blob.File.Kind)
		return telegram.NewCachedResult(uuid.NewString(), blob.File, cached.Post.ID.String(), caption)
	})
	h.answer(ctx, query.ID, results)
}

func (h *handler) answer(ctx context.Context, queryID string, results []telegram.InlineQueryResult) {
	if err := h.tg.AnswerInlineQuery(ctx, queryID, results); err != nil {
		logger.For(ctx).WithError(err).Error("answering inline query")
	}
}

// splitQueryText separates the post URL on the first line from the optional
// comment on the trailing lines.
func splitQueryText(text string) (urlPart, comment string) {
	urlPart, comment, found := strings.Cut(text, "\n")
	if !found {
		return strings.TrimSpace(text), ""
	}
	return strings.TrimSpace(urlPart), strings.TrimSpace(comment)
}

func helpResult() telegram.InlineQueryResult {
	const usage = "Paste a link to a post from Derpibooru, Ponybooru, Ponerpics, " +
		"Manebooru, Furbooru, Twibooru, Twitter/X or DeviantArt.\n" +
		"Lines after the link become a comment under the media."

	return telegram.InlineQueryResultArticle{
		Type:                "article",
		ID:                  uuid.NewString(),
		Title:               "Send me a link to a post",
		Description:         usage,
		InputMessageContent: telegram.InputMessageContent{MessageText: usage},
	}
}

// errorResult renders the error chain as a single video result. The report id
// lets the user quote something short when filing an issue.
func errorResult(ctx context.Context, err error) telegram.InlineQueryResult {
	reportID := sentryutil.ReportError(ctx, err)

	caption := fmt.Sprintf("*Could not process this link*\n%s\nreport id: `%s`",
		escapeMarkdown(err.Error()), reportID)

	return telegram.InlineQueryResultVideo{
		Type:      "video",
		ID:        uuid.NewString(),
		VideoURL:  errVideoURL,
		MimeType:  "video/mp4",
		ThumbURL:  errThumbURL,
		Title:     "Something went wrong",
		Caption:   caption,
		ParseMode: "MarkdownV2",
	}
}
