// Package uploader turns one blob representation into a Telegram file living
// in the cache channel, picking the narrowest upload method that fits
// Telegram's size and shape limits.
package uploader

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/Veetaha/snowpity/service/logger"
	"github.com/Veetaha/snowpity/service/mediaproc"
	"github.com/Veetaha/snowpity/service/persist"
	"github.com/Veetaha/snowpity/service/telegram"
	"github.com/Veetaha/snowpity/util"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Telegram limits per upload method.
const (
	photoByURLMax       = 5 * util.MB
	photoByMultipartMax = 10 * util.MB
	fileByURLMax        = 20 * util.MB
	fileByMultipartMax  = 50 * util.MB

	// maxDownloadSize refuses anything larger outright.
	maxDownloadSize = 200 * util.MB

	// maxLosslessImageSide is the bounding box oversized images are resized to.
	maxLosslessImageSide = 2560

	// A photo wider than this relative to its height renders unusably in the
	// Telegram client; it goes up as a document instead.
	maxPhotoAspectRatio = 20

	// Photos with width+height beyond this are rejected by Telegram and need a
	// resize first.
	maxPhotoDimensionSum = 10000
)

// ErrBlobTooBig is non-fatal: the coalescer advances to the next
// representation. Actual is zero when only the streamed size tripped the
// bound.
type ErrBlobTooBig struct {
	Actual int64
	Max    int64
}

func (e ErrBlobTooBig) Error() string {
	if e.Actual == 0 {
		return fmt.Sprintf("blob exceeds the %s limit", util.InByteSizeFormat(uint64(e.Max)))
	}
	return fmt.Sprintf("blob is %s which exceeds the %s limit",
		util.InByteSizeFormat(uint64(e.Actual)), util.InByteSizeFormat(uint64(e.Max)))
}

// Uploader uploads blobs to the Telegram cache channel.
type Uploader struct {
	tg          *telegram.Client
	httpClient  *http.Client
	cacheChatID int64

	// Transcode hooks default to mediaproc; tests stub them to run without
	// ffmpeg on PATH.
	gifToMP4  func(ctx context.Context, path string) (*mediaproc.TempFile, error)
	webmToMP4 func(ctx context.Context, path string) (*mediaproc.TempFile, error)
}

func New(tg *telegram.Client, httpClient *http.Client, cacheChatID int64) *Uploader {
	return &Uploader{
		tg:          tg,
		httpClient:  httpClient,
		cacheChatID: cacheChatID,
		gifToMP4:    mediaproc.GifToMP4,
		webmToMP4:   mediaproc.WebmToMP4,
	}
}

// UploadBlob walks the blob's representations in preference order and returns
// the Telegram file of the first one that uploads. Per-representation
// failures are logged and skipped; when all representations exhaust, the last
// error is returned.
func (u *Uploader) UploadBlob(ctx context.Context, post persist.Post, blob persist.Blob) (persist.TgFile, error) {
	if len(blob.Reps) == 0 {
		return persist.TgFile{}, fmt.Errorf("uploader: blob %s of %s has no representations", blob.ID, post.ID)
	}
	logger.For(ctx).Debugf("uploading blob %s of %s, preferred representation %s", blob.ID, post.ID, blob.Best().Kind)

	var lastErr error
	for i, rep := range blob.Reps {
		ctx := logger.NewContextWithFields(ctx, logrus.Fields{
			"post": post.ID.String(),
			"blob": string(blob.ID),
			"rep":  rep.Kind.String(),
		})

		file, err := u.uploadRepresentation(ctx, post, blob, rep)
		if err != nil {
			lastErr = err
			logger.For(ctx).WithError(err).Warnf("representation %d/%d failed, trying next", i+1, len(blob.Reps))
			continue
		}
		return file, nil
	}
	return persist.TgFile{}, lastErr
}

func (u *Uploader) uploadRepresentation(ctx context.Context, post persist.Post, blob persist.Blob, rep persist.Representation) (persist.TgFile, error) {
	fileName := TgFileName(post, blob.ID, rep.Kind.Ext())

	switch rep.Kind {
	case persist.RepKindImageJpeg, persist.RepKindImagePng, persist.RepKindImageSvg:
		return u.uploadImage(ctx, rep, fileName)
	case persist.RepKindVideoMp4:
		return u.uploadVideo(ctx, rep, fileName, false)
	case persist.RepKindAnimationMp4:
		return u.uploadVideo(ctx, rep, fileName, true)
	case persist.RepKindAnimationGif:
		return u.uploadGif(ctx, rep, fileName)
	case persist.RepKindVideoWebm:
		return u.uploadWebm(ctx, rep, fileName)
	}
	return persist.TgFile{}, fmt.Errorf("uploader: unsupported representation kind %s", rep.Kind)
}

func (u *Uploader) uploadImage(ctx context.Context, rep persist.Representation, fileName string) (persist.TgFile, error) {
	// Extreme aspect ratios don't render as photos; ship the original bytes as
	// a document without re-encoding.
	if rep.Dimensions != nil && rep.Dimensions.AspectRatio() > maxPhotoAspectRatio {
		return u.uploadDocument(ctx, rep, fileName, nil)
	}

	if rep.Dimensions != nil && rep.Dimensions.Width+rep.Dimensions.Height > maxPhotoDimensionSum {
		bs, err := u.downloadToMemory(ctx, rep.URL, maxDownloadSize)
		if err != nil {
			return persist.TgFile{}, err
		}
		resized, err := mediaproc.ResizeImage(bs, maxLosslessImageSide)
		if err != nil {
			logger.For(ctx).WithError(err).Warn("resize failed, uploading original as document")
			return u.uploadDocument(ctx, rep, fileName, bs)
		}
		return u.sendPhotoMultipart(ctx, resized, fileName)
	}

	if !rep.SizeHint.Exceeds(photoByURLMax) {
		file, err := u.send(ctx, persist.TgFileKindPhoto, telegram.FileFromURL(rep.URL))
		if err == nil {
			return file, nil
		}
		if !util.ErrorAs[telegram.ErrAPI](err) {
			return persist.TgFile{}, err
		}
		logger.For(ctx).WithError(err).Info("photo by URL rejected, downloading for multipart")
	}

	if rep.SizeHint.Exceeds(photoByMultipartMax) {
		return u.uploadDocument(ctx, rep, fileName, nil)
	}

	bs, err := u.downloadToMemory(ctx, rep.URL, fileByMultipartMax)
	if err != nil {
		return persist.TgFile{}, err
	}
	if int64(len(bs)) > photoByMultipartMax {
		return u.uploadDocument(ctx, rep, fileName, bs)
	}
	file, err := u.sendPhotoMultipart(ctx, bs, fileName)
	if err != nil && util.ErrorAs[telegram.ErrAPI](err) {
		logger.For(ctx).WithError(err).Info("photo by multipart rejected, falling back to document")
		return u.uploadDocument(ctx, rep, fileName, bs)
	}
	return file, err
}

func (u *Uploader) uploadVideo(ctx context.Context, rep persist.Representation, fileName string, soundless bool) (persist.TgFile, error) {
	kind := persist.TgFileKindVideo
	if soundless {
		kind = persist.TgFileKindMpeg4Gif
	}

	if !rep.SizeHint.Exceeds(fileByURLMax) {
		file, err := u.send(ctx, kind, telegram.FileFromURL(rep.URL))
		if err == nil {
			return file, nil
		}
		if !util.ErrorAs[telegram.ErrAPI](err) {
			return persist.TgFile{}, err
		}
		logger.For(ctx).WithError(err).Info("video by URL rejected, downloading for multipart")
	}

	bs, err := u.downloadToMemory(ctx, rep.URL, fileByMultipartMax)
	if err != nil {
		return persist.TgFile{}, err
	}
	return u.send(ctx, kind, telegram.FileFromBytes(fileName, bs))
}

// uploadGif and uploadWebm bound the source download only by the hard
// download limit: the multipart limit applies to the transcoded mp4, and a
// large gif commonly shrinks far below it.
func (u *Uploader) uploadGif(ctx context.Context, rep persist.Representation, fileName string) (persist.TgFile, error) {
	gif, err := u.downloadToTemp(ctx, rep.URL, maxDownloadSize)
	if err != nil {
		return persist.TgFile{}, err
	}
	defer gif.Close()

	mp4, err := u.gifToMP4(ctx, gif.Path)
	if err != nil {
		return persist.TgFile{}, err
	}
	defer mp4.Close()

	if err := transcodedFits(mp4.Path); err != nil {
		return persist.TgFile{}, err
	}
	return u.send(ctx, persist.TgFileKindMpeg4Gif, telegram.FileFromPath(fileName, mp4.Path))
}

func (u *Uploader) uploadWebm(ctx context.Context, rep persist.Representation, fileName string) (persist.TgFile, error) {
	webm, err := u.downloadToTemp(ctx, rep.URL, maxDownloadSize)
	if err != nil {
		return persist.TgFile{}, err
	}
	defer webm.Close()

	mp4, err := u.webmToMP4(ctx, webm.Path)
	if err != nil {
		return persist.TgFile{}, err
	}
	defer mp4.Close()

	if err := transcodedFits(mp4.Path); err != nil {
		return persist.TgFile{}, err
	}
	return u.send(ctx, persist.TgFileKindVideo, telegram.FileFromPath(fileName, mp4.Path))
}

// transcodedFits checks the produced mp4 against the multipart upload bound.
func transcodedFits(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return errors.Wrap(err, "sizing transcoded file")
	}
	if info.Size() > fileByMultipartMax {
		return ErrBlobTooBig{Actual: info.Size(), Max: fileByMultipartMax}
	}
	return nil
}

// uploadDocument is the last-resort method. When the caller already holds the
// bytes, they are reused; otherwise the same size-hint heuristics as the other
// strategies apply.
func (u *Uploader) uploadDocument(ctx context.Context, rep persist.Representation, fileName string, preDownloaded []byte) (persist.TgFile, error) {
	if preDownloaded != nil {
		return u.send(ctx, persist.TgFileKindDocument, telegram.FileFromBytes(fileName, preDownloaded))
	}

	if !rep.SizeHint.Exceeds(fileByURLMax) {
		file, err := u.send(ctx, persist.TgFileKindDocument, telegram.FileFromURL(rep.URL))
		if err == nil {
			return file, nil
		}
		if !util.ErrorAs[telegram.ErrAPI](err) {
			return persist.TgFile{}, err
		}
		logger.For(ctx).WithError(err).Info("document by URL rejected, downloading for multipart")
	}

	bs, err := u.downloadToMemory(ctx, rep.URL, fileByMultipartMax)
	if err != nil {
		return persist.TgFile{}, err
	}
	return u.send(ctx, persist.TgFileKindDocument, telegram.FileFromBytes(fileName, bs))
}

func (u *Uploader) sendPhotoMultipart(ctx context.Context, bs []byte, fileName string) (persist.TgFile, error) {
	return u.send(ctx, persist.TgFileKindPhoto, telegram.FileFromBytes(fileName, bs))
}

// send performs the API call matching the requested kind and extracts the
// file handle Telegram actually stored, which may differ in kind.
func (u *Uploader) send(ctx context.Context, requested persist.TgFileKind, file telegram.InputFile) (persist.TgFile, error) {
	var msg *telegram.Message
	var err error

	switch requested {
	case persist.TgFileKindPhoto:
		msg, err = u.tg.SendPhoto(ctx, u.cacheChatID, file)
	case persist.TgFileKindVideo:
		msg, err = u.tg.SendVideo(ctx, u.cacheChatID, file)
	case persist.TgFileKindMpeg4Gif:
		msg, err = u.tg.SendAnimation(ctx, u.cacheChatID, file)
	default:
		msg, err = u.tg.SendDocument(ctx, u.cacheChatID, file)
	}
	if err != nil {
		return persist.TgFile{}, err
	}

	tgFile, err := msg.File(requested)
	if err != nil {
		return persist.TgFile{}, err
	}

	method := "URL"
	if file.URL == "" {
		method = "multipart"
	}
	logger.For(ctx).Infof("uploaded as %s by %s (requested %s)", tgFile.Kind, method, requested)

	return tgFile, nil
}
