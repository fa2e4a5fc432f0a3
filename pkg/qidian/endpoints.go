package qidian

import (
	"fmt"
	"strings"
)

const (
	// BaseURL is the base URL for Qidian
	BaseURL = "https://www.qidian.com"

	// CategoryEndpoint lists a book's volumes and chapters
	CategoryEndpoint = "/ajax/book/category"

	// ReviewSummaryEndpoint lists the commented paragraphs of a chapter
	ReviewSummaryEndpoint = "/ajax/chapterReview/reviewSummary"

	// ReviewListEndpoint pages through the comments of one paragraph
	ReviewListEndpoint = "/ajax/chapterReview/reviewList"

	// ChapterInfoEndpoint returns chapter text
	ChapterInfoEndpoint = "/ajax/chapter/chapterInfo"

	// DefaultPageSize is the review list page size when none is configured
	DefaultPageSize = 20

	// ReviewListType selects paragraph reviews in the review list endpoint
	ReviewListType = "2"
)

// BookURL returns the landing page of a book
func BookURL(base, bookID string) string {
	return fmt.Sprintf("%s/book/%s/", strings.TrimRight(base, "/"), bookID)
}

// ChapterPageURL returns the reader page of a chapter
func ChapterPageURL(base, bookID, chapterID string) string {
	return fmt.Sprintf("%s/chapter/%s/%s/", strings.TrimRight(base, "/"), bookID, chapterID)
}
