// Package server hosts the Fiber HTTP service that exposes the ENCODE
// catalogue: request IDs, panic recovery, JSON error rendering and request
// metrics live here, while the routes subpackage binds catalogue, file and
// metrics endpoints. Keep exports narrow and accept explicit dependencies.
package server
