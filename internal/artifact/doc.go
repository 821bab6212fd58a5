// Package artifact persists batch results as a self-describing tree:
//
//	<root>/config.json
//	<root>/report.json
//	<root>/index.html
//	<root>/<slug>/<golden>/{candidate,golden,delta,boolean}.png
//	<root>/<slug>/<golden>/analysis.json
//
// Each golden directory is staged under a temporary name and renamed into
// place, so a failed write never leaves a partial directory next to its
// siblings.
package artifact
