// Package logger provides the structured logging interface used by the
// security events connector.
//
// It wraps zerolog behind the Logger interface. There is no package-level
// logger: every component receives its Logger at construction time.
//
//	log, err := logger.New(&cfg.Logging)
//	if err != nil {
//	    return err
//	}
//	log.WithField("endpoint", "list_events").Info("Got the response")
//	log.InfoWithFields("Fetch complete", map[string]interface{}{
//	    "records":   42,
//	    "api_calls": 5,
//	})
//
// Records are appended to the configured file (secureEvents_connector.log by
// default) and mirrored to a console writer on stderr when logging.console is
// set. Tests use NewTestLogger to capture records or NewNopLogger to drop them.
package logger
