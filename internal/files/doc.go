// Package files provides file system discovery and output utilities.
//
// Discovery enumerates recording sessions (one directory per cell) and the
// sweep files inside them in lexicographic order. Manager writes export
// artifacts atomically below a base directory.
//
// Example usage:
//
//	discovery := files.NewDiscovery("/data/recordings")
//	sessions, err := discovery.ListSessions(".")
//	sweeps, err := discovery.FindSweepFiles(sessions[0].Name, ".ibw")
//
//	manager := files.NewManager("/data/out", logger)
//	err = manager.WriteFile("features.json", data)
package files
