// Package logging provides structured logging built on uber/zap.
//
// Two modes: production emits JSON for machine parsing, development
// emits colored console output. Components take a *Logger and attach
// structured fields:
//
//	log := logging.NewDefault()
//	log.Info("region created", zap.String("name", name))
//	log.Error("bind failed", zap.Error(err))
package logging
