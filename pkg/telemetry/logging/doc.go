// Package logging configures log/slog for the router.
//
// New builds a JSON or text logger from config.LoggingConfig. Attributes
// whose keys look like credentials (api_key, authorization, password,
// secret, dsn) are masked by a ReplaceAttr hook, so provider keys never
// reach a log sink.
//
//	logger, err := logging.New(cfg.Telemetry.Logging, os.Stdout)
//	ctx = logging.WithRequestID(ctx, id)
//	logging.FromContext(ctx, logger).Info("routing request")
package logging
