package utils

import (
	"io"

	"github.com/MrSnakeDoc/mediabot/internal/logger"
)

// Close discards the error. Meant for deferred response bodies.
func Close(c io.Closer) { _ = c.Close() }

// CloseLogged closes a long-lived component at shutdown and reports failures.
func CloseLogged(c io.Closer, component string, log logger.Logger) {
	err := c.Close()
	if err == nil {
		log.Info("component_closed", logger.String("component", component))
		return
	}
	log.Warn("component_close_failed", logger.String("component", component), logger.Error(err))
}
