package domain

import "path/filepath"

const (
	// ForgeDirName is the name of the internal workspace directory.
	ForgeDirName = ".forge"

	// BlobsDirName is the name of the content addressable store directory.
	BlobsDirName = "blobs"

	// ActionsDirName is the name of the action cache directory.
	ActionsDirName = "actions"

	// ConfigFileName is the name of the project configuration file.
	ConfigFileName = "forge.yaml"

	// ActionsDBName is the filename of the remote server's action index.
	ActionsDBName = "actions.db"

	// DirPerm is the default permission for directories (rwxr-x---).
	DirPerm = 0o750

	// FilePerm is the default permission for files (rw-r--r--).
	FilePerm = 0o644
)

// DefaultStorePath returns the default root for forge metadata under the
// workspace root.
func DefaultStorePath(root string) string {
	return filepath.Join(root, ForgeDirName)
}

// DefaultBlobsPath returns the default blob store directory.
func DefaultBlobsPath(root string) string {
	return filepath.Join(root, ForgeDirName, BlobsDirName)
}

// DefaultActionsPath returns the default action cache directory.
func DefaultActionsPath(root string) string {
	return filepath.Join(root, ForgeDirName, ActionsDirName)
}
