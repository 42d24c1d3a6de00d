// Package server hosts the Fiber HTTP application and its middleware chain:
// request ids, panic recovery and the JSON error payload shared by every
// route. Handlers live in the routes subpackage and receive their
// dependencies explicitly, so this package stays free of domain imports.
package server
