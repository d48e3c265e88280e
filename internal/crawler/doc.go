// Package crawler implements the scoped traversal engine: a LIFO frontier
// with a visited set, bounded by depth and page budget, producing one record
// per crawl attempt.
package crawler
