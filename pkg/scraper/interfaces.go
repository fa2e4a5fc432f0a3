package scraper

import (
	"context"

	"qdreviews/pkg/qidian"
)

// ReviewClient defines the upstream operations a run needs
type ReviewClient interface {
	BookID() string
	Authenticate(ctx context.Context) error
	Refresh(ctx context.Context) error
	Refreshes() int
	Chapters(ctx context.Context) ([]qidian.Chapter, error)
	Summary(ctx context.Context, chapterID, referer string) ([]qidian.Segment, error)
	SegmentComments(ctx context.Context, chapterID, segmentID, referer string) ([]*qidian.Comment, error)
}

// TextSource recovers original paragraph text for a chapter
type TextSource interface {
	SegmentTexts(ctx context.Context, chapterID string) map[string]string
}
