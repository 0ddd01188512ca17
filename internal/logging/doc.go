// Package logging provides opt-in file-based JSON logging with rotation
// for the knowledge base core. When the --debug flag is set, comprehensive
// logs are written to ~/.kbcore/logs/ for debugging and troubleshooting.
//
// By default (without --debug), logging is minimal and goes to stderr only.
package logging
