package types

// Version is the canonical project version.
// The CLI and the host frame contract share this version.
const Version = "0.3.0"
