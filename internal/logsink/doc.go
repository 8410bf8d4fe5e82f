// Package logsink carries operator-facing log lines from the engine to the
// UI and to the displays of log clients.
//
// Writers never block: entries go into a buffered channel and are dropped,
// and counted, when it is full. A single Run loop keeps a bounded history,
// broadcasts to subscribers and prints to every configured log client.
package logsink
