// Package history persists the confirmed conversation to a local SQLite
// database so a restarted client can paint the last known transcript before
// the first network refresh lands. The cache is write-behind: the
// coordinator replaces its contents after every successful refresh and
// wipes it on sign-out, conversation clear, and user change.
package history
