package config

// Version is the explorer binary version.
// Set at build time via: -ldflags "-X github.com/persistorai/explorer/internal/config.Version=<tag>"
var Version = "dev"
