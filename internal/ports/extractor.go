package ports

// Extractor unpacks an archive into a directory, overwriting existing files.
type Extractor interface {
	Extract(archivePath, destDir string) error
}
