// Package scraper runs a whole book: credentials, catalog, per-chapter
// reviews, persistence and the final merge.
//
// Chapters are processed one at a time in catalog order. A chapter is
// written only after every commented paragraph has been paginated to the
// end, so a rerun skips exactly the chapters that finished. A connectivity
// failure costs the current chapter, a cooldown and a credential refresh;
// any other failure costs only the chapter.
//
// Usage:
//
//	s := scraper.New(cfg, scraper.Deps{
//	    Client:  client,
//	    Texts:   qidian.NewContentFetcher(client, launcher, cfg.Browser.HeadlessSettle, log),
//	    Console: ui.NewConsole(),
//	    Metrics: metrics.New(bookID),
//	})
//	report, err := s.Run(ctx)
package scraper
