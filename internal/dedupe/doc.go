// Package dedupe tracks already-handled identifiers so that terminal stream
// events are applied at most once, even when the channel redelivers them
// across reconnects.
package dedupe
