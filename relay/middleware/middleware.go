// Package middleware contains common middleware functions for HTTP handlers.
package middleware

import "net/http"

// Interceptor is a middleware interface.
type Interceptor interface {
	Intercept(handlerFunc http.Handler) http.Handler
}

// Set applies multiple middleware to a handler. The last interceptor wraps
// all the others, so Set(h, auth, logger, cors) runs cors first and auth
// right before h.
func Set(h http.Handler, m ...Interceptor) http.Handler {
	for _, i := range m {
		h = i.Intercept(h)
	}
	return h
}
