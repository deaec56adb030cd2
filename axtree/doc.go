// Package axtree projects a dom.Document into a compact accessibility tree
// and resolves semantic queries against it.
//
// Every materialised node and every locator hit is bound to a ref ("@e1",
// "@e2", ...) in a Registry owned by the caller. A snapshot clears the
// registry first; locator queries only add to it.
package axtree
