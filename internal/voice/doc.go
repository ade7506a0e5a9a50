// Package voice defines the boundary to the audio capture subsystem.
//
// Capture itself (microphone access, encoding) is a collaborator behind the
// Recorder interface. This package owns what the conversation engine needs:
// a captured-audio handle with an explicit, exactly-once release of its
// backing resource, and the mapping from content type to upload filename.
package voice
