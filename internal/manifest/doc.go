// Package manifest loads the list of artifacts to stage from a TOML, YAML or
// JSON file and from --artifact flags.
//
// A manifest looks like this in TOML:
//
//	[[artifacts]]
//	name = "linux-amd64"
//	path = "dist/app-linux-amd64.tar.gz"
//
// and the same in YAML or JSON under an "artifacts" list.
package manifest
