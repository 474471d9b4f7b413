// Package handler exposes the dispatch gateway over HTTP. It translates
// generation requests into jobs and maps each typed dispatch failure to
// a distinct status code.
package handler
