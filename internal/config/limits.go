package config

const (
	// MaxFolderNameLength is the maximum length for folder names.
	// Limited to 255 to fit comfortably in an index key and provide
	// reasonable UX (names should be short and descriptive).
	MaxFolderNameLength = 255
)
