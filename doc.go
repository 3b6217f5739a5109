// Package main provides the PimaPOS notification service.

// This package contains the main application entry point. The actual API
// documentation is organized into subpackages:

// - internal/handlers: HTTP request handlers for all API endpoints
// - internal/models: Data models and database schemas
// - internal/auth: Token validation and auth state events
// - internal/permissions: Per-operator permission session
// - internal/realtime: WebSocket change-feed subscription and bridging
// - internal/queue: In-memory notification queue and bell feed
// - internal/store: Durable notification state with exclusion filtering
// - internal/photos: Transaction photo fetch with retry
// - internal/lifecycle: Session resume state machine
// - internal/guard: Navigation blocking while notifications are pending
// - internal/session: POS terminal session registry
// - internal/database: Database connection and migrations
// - internal/middleware: HTTP middleware (rate limiting, metrics, etc.)

// See the individual package documentation for detailed API reference.
package pimapos
