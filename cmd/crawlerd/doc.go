// Package main hosts the crawl engine service entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes health probes, Prometheus metrics,
//     a render-health probe for the headless subsystem, and a task submission
//     endpoint that feeds the same queue the Pub/Sub consumer does.
//   - Queue & workers: task descriptors flow through a bounded in-memory queue
//     sized by config.Crawler.QueueDepth and are fanned out to a fixed worker
//     pool sized by config.Crawler.Concurrency. Context cancellation stops
//     workers cleanly on shutdown. When a Pub/Sub subscription is configured,
//     a consumer bridges it into the queue with ack-on-enqueue semantics.
//   - Task pipeline: workers normalize descriptors via the task factory,
//     dispatch to one of the task kinds (keyword search, status detail, status
//     comments, user profile), acquire a session from the Redis-ranked pool,
//     fetch via the static or rendered strategy, and persist through the
//     content store.
//   - Sessions: a Redis sorted set ranks sessions by health. Failures decay
//     health by severity tier (rate-limit/bot-detection heaviest); scores are
//     clamped at zero server-side via a Lua script. Session rows themselves
//     live in Postgres and are owned by the external account manager.
//   - Persistence & fanout: raw payloads are written content-addressed to the
//     configured blob backend (memory/local/GCS); content rows dedup on hash
//     in Postgres, and a ready event is published to Pub/Sub exactly once per
//     unique payload over a lazily-opened connection.
//   - Configuration & plumbing: Viper populates config from env/files; zap
//     provides structured logging; Prometheus metrics are exported via
//     /metrics. The render guard keeps one shared Chrome process and opens an
//     isolated browsing context per rendered fetch.
//
// Operational notes:
//   - Shutdown is coordinated via context cancellation propagated from main
//     through the dispatcher to workers; the browser process, Redis client,
//     Postgres pools, and the publisher connection close on the way out.
//   - The service auto-retries nothing at the task level: failed tasks report
//     a structured outcome and re-enqueueing is the producer's decision.
//   - Run locally: go run ./cmd/crawlerd -config config.yaml, or rely solely
//     on CRAWLER_* env overrides. Without db.dsn and pubsub settings the
//     service falls back to in-memory records and publisher, which is enough
//     to exercise the pipeline end to end against a local Redis.
package main
