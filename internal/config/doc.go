// Package config loads reqtrace configuration files.
//
// A file declares listen addresses, an optional Redis trace registry and a
// list of tracer profiles. Each profile names a callback and a declarative
// match list; both are resolved against a registry.Registry.
package config
