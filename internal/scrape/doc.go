// Package scrape runs the photo scraping pipeline.
//
// Work is durable: every (registration, source) pair owns one scrape_jobs
// row, and the orchestrator polls the store for due rows rather than keeping
// an in-memory queue. A dispatcher goroutine claims jobs and hands each to a
// worker goroutine admitted through a resizable gate; the worker owns the
// job until it reaches a terminal state, including any transient-error
// backoff sleeps, which are visible in the store as the retrying status.
//
// Two maintenance loops run alongside the dispatcher: a rescan scheduler
// that requeues succeeded jobs once their next scan time arrives, and a
// reclaim loop that rescues jobs whose worker stopped heartbeating. On
// startup any rows left worker-held by a previous process return to the
// queue. Claims, terminal transitions, and resumes are all generation
// checked so a straggling worker from before a rescan cannot clobber newer
// state.
package scrape
