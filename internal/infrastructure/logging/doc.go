// Package logging builds the structured zap logger shared by every
// component.
//
// Production mode writes JSON; development mode writes colored console
// output. Components receive a *zap.Logger and name themselves:
//
//	logger := logging.NewDefault()
//	registry := group.NewRegistry(fetcher, notifier, cfg).WithLogger(logger.Logger)
//	logger.Component("server").Info("Server starting", zap.String("port", "8000"))
package logging
