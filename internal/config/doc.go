// Package config provides environment-based configuration.
//
// Loads required connection strings and logging options from the process
// environment with sensible development defaults.
package config
