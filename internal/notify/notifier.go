package notify

import "go.uber.org/zap"

// Notifier is the user-facing notification surface (the toast layer in the
// web client). Implementations must be safe for concurrent use.
type Notifier interface {
	Success(msg string)
	Error(msg string)
	Info(msg string)
}

// LogNotifier surfaces notifications through the structured log.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Success(msg string) {
	n.logger.Info("Notification", zap.String("level", "success"), zap.String("message", msg))
}

func (n *LogNotifier) Error(msg string) {
	n.logger.Warn("Notification", zap.String("level", "error"), zap.String("message", msg))
}

func (n *LogNotifier) Info(msg string) {
	n.logger.Info("Notification", zap.String("level", "info"), zap.String("message", msg))
}
