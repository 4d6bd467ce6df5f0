// Package logger provides a context-aware wrapper around Go's slog package
// adding functional options for configuration, helper attribute constructors,
// and transparent injection of values stored in context.Context.
//
// The single factory New creates a *slog.Logger configured by Option
// functions:
//
//   - Select an output format (text via tint, or json)
//   - Set the minimum log level
//   - Supply default slog.Attr values applied to every record
//   - Register ContextExtractor callbacks that inject attributes pulled from
//     a context value (for example a request id) every time Handle is invoked.
//
// Helper constructors such as SessionID, RiskScore, and EventType live in
// attr.go and keep attribute naming consistent across the session pipeline.
//
// # Usage
//
//	log := logger.New(
//	    logger.WithDevelopment("session-service"),
//	    logger.WithContextValue("request_id", ctxKeyRequestID),
//	)
//	logger.SetAsDefault(log)
//
//	log.InfoContext(ctx, "session regenerated",
//	    logger.SessionID(sess.ID.String()),
//	    logger.RiskScore(score),
//	)
//
// Error and Errors produce attributes only when the supplied error value is
// non-nil, so they can be passed unconditionally.
package logger
