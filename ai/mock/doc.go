// Package mock provides test doubles for the ai package interfaces.
//
// The doubles generate deterministic output by default and allow custom
// behavior injection via function fields.
package mock
