// Package driving defines the interfaces through which the outside world
// drives the core: the CLI and the HTTP API call these, core services
// implement them.
package driving
