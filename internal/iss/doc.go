// Package iss provides the shared root of the in-situ sequencing spot calling
// core: error kinds, logging streams and small numeric helpers used by the
// layer packages (l1colors through l5dedup).
//
// Layer packages may import iss, but iss never imports them.
package iss
