// Package trace records the logical decisions of a staging run as a
// canonical, byte-stable JSON document.
//
// The trace is observational only and never affects staging behavior.
package trace
