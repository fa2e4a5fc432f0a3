// Package storage persists paragraph reviews as CSV files.
//
// The storage package handles:
//   - Creating the per-book output tree
//   - Writing chapter files atomically through a temporary sibling and rename
//   - Recording which chapters are complete so a rerun can skip them
//   - Merging chapter files into one aggregate file
//
// Files are UTF-8 with a byte order mark. A chapter file that holds only
// the mark is the completion marker of a chapter without reviews.
//
// Usage:
//
//	manager, err := storage.NewManager("data/qidianBookReviews", bookID, log)
//	if err != nil {
//	    return err
//	}
//
//	if !manager.IsCompleted(chapterID) {
//	    if _, err := manager.WriteChapter(chapterID, records); err != nil {
//	        log.WithError(err).Error("failed to save chapter")
//	    }
//	}
//
//	result, err := manager.Merge()
package storage
