// Package auth supplies the bearer credentials used by the realtime
// handshake.
//
// Credentials come from a literal token or a token file. A Source holds the
// current credentials and tells watchers about login (Set) and logout
// (Clear); a FileWatcher keeps a Source in sync with a token file that is
// rewritten when the token is refreshed.
package auth
