package rx

// DirectoryMonitor produces change notifications for one directory.
type DirectoryMonitor interface {
	// Watch starts watching dir. It fails with ErrDirectoryAccess if dir cannot
	// be opened for watching and with ErrWatchSetup if the watch itself cannot
	// be created.
	Watch(dir string) (DirectoryWatch, error)
}

// DirectoryWatch is an active watch. Notifications carry no payload and may
// arrive in bursts; ordering relative to the caller's own writes is not defined.
type DirectoryWatch interface {
	// Events delivers one value per observed change. It is closed after Close.
	Events() <-chan struct{}

	// Close stops the watch and releases its OS resources.
	Close() error
}
