// Package logging builds the zap logger used across retractd.
//
// A Logger is a *zap.Logger with a few additions: console output to stdout
// or stderr, an optional OpenTelemetry bridge, sampling that never drops
// warnings or errors, and redaction of secret-looking fields before they are
// encoded.
//
//	cfg, err := logging.FromAppConfig(appCfg.Logging)
//	if err != nil {
//	    return err
//	}
//	logger, err := logging.NewLogger(cfg, nil)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
// Library packages take a plain *zap.Logger. Correlation data travels in the
// context and is attached with For:
//
//	ctx = logging.WithPaperID(ctx, "10.1000/xyz123")
//	logging.For(ctx, base).Info("paper analyzed")
package logging
