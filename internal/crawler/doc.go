// Package crawler defines the shared domain model of the crawl execution
// layer: sessions and their health lifecycle, normalized tasks, fetch
// requests and strategies, stored content records, and the interfaces
// implemented by the session pool, render guard, fetch router, and
// content store.
package crawler
