// Package web builds the fiber application: middleware, health and metrics endpoints and the
// route groups of the handler packages.
package web
