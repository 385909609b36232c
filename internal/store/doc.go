// Package store defines the persistence contracts for websites, conversations
// and training data. Implementations live in internal/storage; this package
// must not import database drivers or concrete clients.
package store
