// Package config loads process configuration from the environment, with
// an optional .env file for development.
package config
