// Package secevent records security-relevant session transitions as an
// append-only audit trail: identifier regenerations, hijack suspicions,
// concurrency-cap evictions, regeneration rate limiting, CSRF rejections,
// and session destruction.
//
// The Recorder is failure-safe by contract: a broken or slow storage backend
// degrades to a local slog fallback and never surfaces an error into the
// request path being audited.
//
//	storage := secevent.NewWriterStorage(logFile)
//	recorder := secevent.NewRecorder(storage, secevent.WithFallbackLogger(log))
//
//	recorder.Record(ctx, secevent.TypeHijackDetected,
//	    secevent.WithUserID(userID),
//	    secevent.WithSessionID(sess.ID.String()),
//	    secevent.WithIP(ip),
//	    secevent.WithDescription("fingerprint mismatch"),
//	)
//
// Three storage backends are provided: MemoryStorage for tests and
// single-process use, WriterStorage emitting one tab-separated record per
// line for stream consumers, and PostgresStorage for SQL dashboards.
// Custom backends implement the one-method Storage interface.
package secevent
