// Package api is the typed HTTP client for the Caffinity storefront
// backend.
//
// The backend is treated as an external collaborator: this package
// owns the wire formats, the error taxonomy (network vs
// server-reported), and the normalization boundary that converts the
// backend's loosely shaped cart payloads into one canonical internal
// form. No ambiguous shape is allowed past this package.
package api
