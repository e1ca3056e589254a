// Package server holds the HTTP server configuration and the feature manager.
//
// # Configuration
//
// The Config struct defines the HTTP port, the API key, the mount point of the
// combo server and whether manifest changes on disk invalidate modules.
//
// # Features
//
// A Feature mounts a group of routes. The Manager registers features and loads
// the enabled ones onto a fiber router:
//
//	mgr := server.NewManager()
//	mgr.Register(modules.NewFeature(ld, log))
//	if err := mgr.LoadAll(app); err != nil {
//	    log.Fatal("Failed to load features", zap.Error(err))
//	}
package server
