// Package sources implements the photo-site adapters.
//
// Each adapter searches one public spotting site for an aircraft
// registration and returns normalized Photo values. Adapters share a fetch
// helper that applies the per-source rate limiter before every request and
// classifies HTTP failures into the package sentinels: ErrTransient for
// conditions worth retrying, ErrBlocked for access denials that need an
// operator, and ErrStructural for layout changes that broke parsing. Zero
// results from an intact page is a successful empty search, never an error.
package sources
