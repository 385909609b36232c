// Package api hosts the HTTP server, middleware, and JSON handlers.
// Notable routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /api/crawl to crawl and store a website.
//   - /api/websites for listing, reading and deleting stored websites.
//   - /api/chat for questions, history and conversation resets.
//   - /api/training for uploading, listing and deleting training data.
//   - POST /admin/setup to crawl a site with the configured defaults.
//
// Browser origins are checked by the CORS middleware so the chat widget can
// be embedded on other sites.
package api
