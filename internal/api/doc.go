// Package api serves the inbound HTTP notify endpoint.
package api
