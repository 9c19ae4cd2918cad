// Package handlers implements the HTTP API: video upload and lifecycle
// endpoints, HLS playlist/segment delivery, encryption key delivery, and
// service health/version endpoints.
package handlers
