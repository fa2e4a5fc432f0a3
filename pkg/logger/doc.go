// Package logger provides the structured logging interface used across the
// scraper.
//
// It wraps zerolog:
//   - colored console output for operators
//   - JSON lines to a size-rotated file (lumberjack) when logging.file is set
//   - child loggers carrying fields (book, chapter, segment)
//   - a capturing TestLogger for assertions in tests
//
// Basic Usage:
//
//	err := logger.Initialize(&cfg.Logging)
//	log := logger.GetLogger().WithField("book", bookID)
//	log.InfoWithFields("chapter saved", map[string]interface{}{
//	    "chapter":  chapterID,
//	    "comments": n,
//	})
package logger
