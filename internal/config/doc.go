// Package config loads subvote's configuration.
//
// Sources, lowest precedence first:
//   - built-in defaults (Default)
//   - a YAML file
//   - a .env file
//   - SUBVOTE_* environment variables
//
// The merged result is validated against an embedded CUE schema.
package config
