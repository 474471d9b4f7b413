// Package sdapi implements a client for the Stable Diffusion web UI API.
// It covers text-to-image generation, a cheap liveness probe, and the
// sampler/model metadata endpoints.
package sdapi
