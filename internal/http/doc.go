// Package httpapi serves live floor events to viewers over server-sent events.
package httpapi
