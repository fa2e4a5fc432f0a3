package qidian

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"qdreviews/pkg/browser"
	"qdreviews/pkg/logger"
	"qdreviews/pkg/retry"
)

// paragraphSelectors are tried in order against a rendered chapter page
var paragraphSelectors = []string{
	"div.read-content p[data-segid]",
	"div.main-text-wrap p[data-segid]",
	"p[data-segid]",
	"div.read-content p",
	"main p",
}

// ContentFetcher recovers the original text of a chapter's paragraphs,
// keyed by segment id. It is best effort and never fails a chapter.
type ContentFetcher struct {
	client   *Client
	launcher browser.Launcher
	settle   time.Duration
	logger   logger.Logger
}

// NewContentFetcher creates a ContentFetcher. A nil launcher disables the
// rendered-page fallback.
func NewContentFetcher(client *Client, launcher browser.Launcher, settle time.Duration, log logger.Logger) *ContentFetcher {
	if log == nil {
		log = logger.GetLogger()
	}
	return &ContentFetcher{
		client:   client,
		launcher: launcher,
		settle:   settle,
		logger:   log.WithField("component", "content"),
	}
}

// SegmentTexts returns segment id to paragraph text for a chapter, empty
// when nothing could be recovered
func (f *ContentFetcher) SegmentTexts(ctx context.Context, chapterID string) map[string]string {
	texts := f.fromAPI(ctx, chapterID)
	if len(texts) == 0 && f.launcher != nil && ctx.Err() == nil {
		texts = f.fromPage(ctx, chapterID)
	}
	if texts == nil {
		texts = map[string]string{}
	}
	f.logger.DebugWithFields("chapter paragraphs recovered", map[string]interface{}{
		"chapter":    chapterID,
		"paragraphs": len(texts),
	})
	return texts
}

func (f *ContentFetcher) fromAPI(ctx context.Context, chapterID string) map[string]string {
	c := f.client
	env, err := c.GetNoRefresh(ctx, ChapterInfoEndpoint, map[string]string{
		"bookId":    c.bookID,
		"chapterId": chapterID,
	}, ChapterPageURL(c.baseURL, c.bookID, chapterID))
	if err != nil {
		f.logger.DebugWithFields("chapter info unavailable", map[string]interface{}{
			"chapter": chapterID,
			"error":   err.Error(),
		})
		return nil
	}

	var data struct {
		Content  *string           `json:"content"`
		Contents []json.RawMessage `json:"contents"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		f.logger.DebugWithFields("chapter info has unexpected shape", map[string]interface{}{
			"chapter": chapterID,
			"error":   err.Error(),
		})
		return nil
	}

	texts := make(map[string]string)
	if data.Content != nil {
		for id, text := range parseSegmentedHTML(*data.Content) {
			texts[id] = text
		}
	}
	if len(texts) > 0 {
		return texts
	}

	for _, raw := range data.Contents {
		var item map[string]json.RawMessage
		if err := json.Unmarshal(raw, &item); err != nil {
			continue
		}
		id := firstField(item, "segmentId", "id")
		text := stripTags(firstField(item, "content", "text"))
		if id != "" && text != "" {
			texts[id] = text
		}
	}
	return texts
}

func (f *ContentFetcher) fromPage(ctx context.Context, chapterID string) map[string]string {
	session, err := f.launcher.Launch(ctx, true)
	if err != nil {
		f.logger.WithError(err).Debug("could not start browser for chapter text")
		return nil
	}
	defer session.Close()

	pageURL := ChapterPageURL(f.client.baseURL, f.client.bookID, chapterID)
	if err := session.Navigate(pageURL); err != nil {
		f.logger.WithError(err).Debug("could not load chapter page")
		return nil
	}
	if err := retry.Wait(ctx, f.settle); err != nil {
		return nil
	}
	html, err := session.OuterHTML()
	if err != nil {
		f.logger.WithError(err).Debug("could not read chapter page")
		return nil
	}
	return parseRenderedPage(html)
}

// parseSegmentedHTML extracts p[data-segid] paragraphs from an HTML fragment
func parseSegmentedHTML(fragment string) map[string]string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return nil
	}
	texts := make(map[string]string)
	doc.Find("p[data-segid]").Each(func(_ int, s *goquery.Selection) {
		id := strings.TrimSpace(s.AttrOr("data-segid", ""))
		text := strings.TrimSpace(s.Text())
		if id != "" && text != "" {
			texts[id] = text
		}
	})
	return texts
}

// parseRenderedPage applies paragraphSelectors in order and returns the
// first non-empty result. Paragraphs without data-segid are numbered from 1.
func parseRenderedPage(html string) map[string]string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	for _, selector := range paragraphSelectors {
		texts := make(map[string]string)
		doc.Find(selector).Each(func(i int, s *goquery.Selection) {
			id, ok := s.Attr("data-segid")
			if !ok || id == "" {
				id = strconv.Itoa(i + 1)
			}
			text := strings.TrimSpace(s.Text())
			if utf8.RuneCountInString(text) > 1 {
				texts[id] = text
			}
		})
		if len(texts) > 0 {
			return texts
		}
	}
	return nil
}

func firstField(item map[string]json.RawMessage, names ...string) string {
	for _, name := range names {
		if v, ok := item[name]; ok {
			return scalarText(v)
		}
	}
	return ""
}

func stripTags(s string) string {
	if !strings.Contains(s, "<") {
		return strings.TrimSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(doc.Text())
}
