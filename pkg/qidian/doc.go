// Package qidian provides a client for the qidian.com ajax endpoints used to
// read a book's catalog and its paragraph reviews.
//
// This package includes:
//   - An authenticated client that injects the anti-forgery tokens and
//     refreshes them once when the server rejects a call
//   - Catalog, review summary and paginated review list calls
//   - A best-effort fetcher for the original paragraph text
//   - Comment records that keep the server's field order
//
// Example usage:
//
//	client := qidian.NewClient(bookID, acquirer, cfg.Qidian, cfg.Request.Timeout, log)
//	if err := client.Authenticate(ctx); err != nil {
//	    return err
//	}
//
//	chapters, err := client.Chapters(ctx)
//	if err != nil {
//	    return err
//	}
//	for _, ch := range chapters {
//	    segments, err := client.Summary(ctx, ch.ID, qidian.BaseURL)
//	    // ...
//	}
package qidian
