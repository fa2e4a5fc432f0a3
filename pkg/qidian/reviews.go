package qidian

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strconv"

	"qdreviews/pkg/errors"
)

// ErrNoResult means a call failed after its refresh budget was spent
var ErrNoResult = stderrors.New("no result")

// Summary returns the commented paragraphs of a chapter. An empty slice
// means the chapter has no paragraph reviews; a failed call returns an
// error wrapping ErrNoResult.
func (c *Client) Summary(ctx context.Context, chapterID, referer string) ([]Segment, error) {
	env, err := c.Get(ctx, ReviewSummaryEndpoint, map[string]string{
		"bookId":    c.bookID,
		"chapterId": chapterID,
	}, referer)
	if err != nil {
		return nil, fmt.Errorf("review summary for chapter %s: %w: %w", chapterID, ErrNoResult, err)
	}

	list, err := decodeList(env.Data)
	if err != nil {
		return nil, fmt.Errorf("review summary for chapter %s: %w: %w", chapterID, ErrNoResult, err)
	}

	segments := make([]Segment, 0, len(list))
	for _, raw := range list {
		seg, err := parseSegment(raw)
		if err != nil {
			return nil, fmt.Errorf("review summary for chapter %s: %w: %w", chapterID, ErrNoResult,
				errors.Wrap(errors.ErrorTypeParsing, err, "summary entry"))
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

// SegmentComments pages through one paragraph's comments until a page comes
// back empty or a request fails. Only the first page may refresh the
// credentials. A connectivity failure aborts with a network error so the
// chapter is not recorded as complete.
func (c *Client) SegmentComments(ctx context.Context, chapterID, segmentID, referer string) ([]*Comment, error) {
	var comments []*Comment

	for page := 1; ; page++ {
		params := map[string]string{
			"bookId":    c.bookID,
			"chapterId": chapterID,
			"segmentId": segmentID,
			"page":      strconv.Itoa(page),
			"pageSize":  strconv.Itoa(c.pageSize),
			"type":      ReviewListType,
		}

		var env *Envelope
		var err error
		if page == 1 {
			env, err = c.Get(ctx, ReviewListEndpoint, params, referer)
		} else {
			env, err = c.GetNoRefresh(ctx, ReviewListEndpoint, params, referer)
		}
		if err != nil {
			if errors.IsNetwork(err) || ctx.Err() != nil {
				return comments, fmt.Errorf("segment %s page %d: %w", segmentID, page, err)
			}
			c.logger.DebugWithFields("pagination stopped on failed page", map[string]interface{}{
				"chapter": chapterID,
				"segment": segmentID,
				"page":    page,
				"error":   err.Error(),
			})
			return comments, nil
		}

		list, err := decodeList(env.Data)
		if err != nil {
			c.logger.DebugWithFields("pagination stopped on undecodable page", map[string]interface{}{
				"segment": segmentID,
				"page":    page,
				"error":   err.Error(),
			})
			return comments, nil
		}
		if len(list) == 0 {
			return comments, nil
		}

		for _, raw := range list {
			cm := NewComment()
			if err := json.Unmarshal(raw, cm); err != nil {
				c.logger.DebugWithFields("skipping malformed comment", map[string]interface{}{
					"segment": segmentID,
					"error":   err.Error(),
				})
				continue
			}
			comments = append(comments, cm)
		}
		if page == 1 {
			sample := string(list[0])
			if len(sample) > 200 {
				sample = sample[:200] + "..."
			}
			c.logger.DebugWithFields("first review page", map[string]interface{}{
				"segment": segmentID,
				"sample":  sample,
			})
		}
	}
}

func decodeList(data json.RawMessage) ([]json.RawMessage, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var ld listData
	if err := json.Unmarshal(data, &ld); err != nil {
		return nil, errors.Wrap(errors.ErrorTypeParsing, err, "list payload")
	}
	return ld.List, nil
}
