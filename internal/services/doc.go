// Package services defines the error taxonomy shared by the pipeline stages
// and the external tool integrations beneath it.
//
// Sentinel markers classify failures (cancelled, external tool, detection,
// io) and the Wrap helper attaches stage and operation context so a terminal
// event can report where a run died. Subpackages hold the integrations
// themselves: ffmpeg for process execution with progress streaming, vad for
// the speech detection backends.
package services
