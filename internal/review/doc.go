// Package review navigates the pending photo queue and applies decisions.
//
// The queue orders candidates best-first and the order is total, so entries
// are addressable by position index or by candidate ID. Decisions are
// one-way: approved photos join the library, rejected rows stay hidden so a
// rescan cannot resurrect them. The only reversal is deleting the candidate.
package review
