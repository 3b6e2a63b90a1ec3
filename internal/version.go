package internal

// Version is the clara release, overridden at build time with
// -ldflags "-X github.com/mannyrayner/C-LARA-2/internal.Version=...".
var Version = "0.1.0"
