// Package fileops provides root-confined file operations with defense-in-depth validation.
//
// Everything in this package assumes an untrusted path arriving from outside the
// process and a trusted root directory that the path must stay inside. The package
// returns plain Go errors wrapping the sentinels declared in resolve.go; callers map
// those to their own error model.
//
// # Resolution
//
// ResolveInRoot is the entry point for any untrusted path:
//
//	resolved, err := fileops.ResolveInRoot("/srv/files", "notes/todo.txt", fileops.ResolveFile)
//	switch {
//	case errors.Is(err, fileops.ErrOutsideRoot):
//	    // "../" sequences or a symlink escaped the root
//	case errors.Is(err, fs.ErrNotExist):
//	    // nothing there
//	case errors.Is(err, fileops.ErrNotRegularFile):
//	    // a directory, device, socket...
//	}
//
// Containment is decided twice: once lexically on the cleaned path, so that a
// "../../etc/passwd" candidate is rejected without touching the filesystem, and
// once on the fully symlink-resolved path, so that a link inside the root
// pointing elsewhere is rejected too. A string-prefix check on the raw input is
// never used.
//
// # Atomic Writes
//
// AtomicWriteFile writes to a temporary file in the destination directory and
// renames it into place. The destination either appears complete or is left
// untouched, and the temporary file is removed on every failure path including
// context cancellation.
//
// # Directory Scanning
//
// SecureDirectoryScanner walks a directory through an os.Root so that no entry
// outside the scan root can be opened, skips symlinks whose targets leave the
// root, and stops at a configurable depth and file count.
package fileops
