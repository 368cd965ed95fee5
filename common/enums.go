// Package common keeps enums shared between configuration and engine
// packages so neither has to import the other.
package common

// Specification of content flow requested from the renderer.
// ENUM(paginated, scrolled)
type FlowMode int

// Specification of spread assembly mode.
// ENUM(auto, none, always)
type SpreadMode int

// Specification of resource URL replacement mode.
// ENUM(none, base64, blobUrl)
type ReplacementMode int

// Kind of user annotation.
// ENUM(highlight, underline, mark)
type AnnotationKind int

// Playback cursor state.
// ENUM(stopped, playing, paused)
type PlayState int
