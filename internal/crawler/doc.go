// Package crawler implements the bounded, polite, breadth-first site crawler
// that feeds the chat context store: seed normalization, level-by-level
// traversal in small concurrent batches, link discovery, and text extraction.
package crawler
