// Package report describes how a results tree is laid out and presented.
//
// The file names in this package are the contract between the artifact
// writer and every consumer of a results tree. Build turns a configuration
// into a Layout, a plain description of what the viewer shows; Index renders
// that layout as an HTML page and Sheet composes the four images of one
// comparison into a single contact sheet.
package report
