// Package genparams holds the prompt quality presets and aspect ratio
// tables used to enrich a raw user prompt into generation parameters.
package genparams
