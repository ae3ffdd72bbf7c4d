// Package sender turns a snapshot of files and a caption into one grouped
// chat message.
//
// Service is the submit boundary: it validates input, snapshots it into a
// Job and hands a closure to the single-worker dispatch queue. Runner is what
// the worker executes: it re-encodes files above the size threshold, builds
// the media group with the caption on the first item only, uploads it to
// every destination and removes temporary artifacts afterwards.
package sender
