// Package logging configures the logger framework used throughout the
// repository.
//
// The package registers a custom logger factory with a uniform
// "LEVEL | package | message" line format and provides InitLoggers to apply a
// single log level to every named logger. Individual packages obtain their
// logger via logger.GetLogger("<name>") and keep it in a package-level
// variable.
package logging
