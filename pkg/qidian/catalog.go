package qidian

import (
	"context"
	"encoding/json"
	"fmt"

	"qdreviews/pkg/errors"
)

// Chapters lists the book's chapters in catalog order. Volume flags decide
// which chapters are free to read.
func (c *Client) Chapters(ctx context.Context) ([]Chapter, error) {
	env, err := c.Get(ctx, CategoryEndpoint, map[string]string{"bookId": c.bookID}, BookURL(c.baseURL, c.bookID))
	if err != nil {
		return nil, fmt.Errorf("chapter list: %w", err)
	}

	var data categoryData
	if len(env.Data) == 0 {
		return nil, errors.New(errors.ErrorTypeParsing, 0, "chapter list has no data")
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, errors.Wrap(errors.ErrorTypeParsing, err, "chapter list")
	}

	var chapters []Chapter
	for _, vol := range data.Volumes {
		free := vol.VS != nil && *vol.VS == 0
		for _, ch := range vol.Chapters {
			chapters = append(chapters, Chapter{
				ID:         string(ch.ID),
				Name:       ch.Name,
				UpdateTime: ch.UpdateTime,
				Free:       free,
			})
		}
	}

	c.logger.DebugWithFields("chapter list fetched", map[string]interface{}{
		"volumes":  len(data.Volumes),
		"chapters": len(chapters),
	})
	return chapters, nil
}

// ScheduleChapters keeps only free chapters when there are any, otherwise
// every chapter. It reports whether the free filter applied.
func ScheduleChapters(chapters []Chapter) ([]Chapter, bool) {
	var free []Chapter
	for _, ch := range chapters {
		if ch.Free {
			free = append(free, ch)
		}
	}
	if len(free) == 0 {
		return chapters, false
	}
	return free, true
}
