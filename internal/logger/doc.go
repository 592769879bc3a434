// Package logger wraps zap for the plugin:
//   - a global sugared logger with a console encoder writing to stderr or a log file,
//   - context helpers (ToContext/FromContext/WithName/WithKV/WithFields),
//   - level parsing and configuration,
//   - convenience functions (Infof, DebugKV, ErrorKV, etc.).
//
// Button controllers and the host adapter take a context and pull the logger
// out of it, so every entry carries the action and button it belongs to.
package logger
