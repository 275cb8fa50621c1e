// Package fs provides filesystem adapters: the install marker store
// (version.txt, config.yaml) and the zip extractor.
package fs
