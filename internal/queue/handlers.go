package queue

// CoreHandlerDeps bundles the external capability ports the core
// handlers need. Any field may be nil (callers composing a registry for
// tests typically only populate the ports exercised by that test). The
// refresh_metadata handler checks its TMDB and OMDb ports and fails the
// item when they are nil; the other handlers call their ports unchecked,
// so a nil port panics, and Worker.dispatch recovers that panic and marks
// the item failed.
type CoreHandlerDeps struct {
	Scanner DirectoryScanner
	Probe   MediaProbe
	TMDB    MetadataProvider
	OMDb    RatingsProvider
	History WatchHistoryProvider
	Library LibraryLookup
	Store   Store
}

// RegisterCoreHandlers wires the four built-in task types into a
// registry. Handlers are registered even when their required ports are
// nil so that HandlerRegistry.Lookup still finds a handler and the
// resulting per-item failure is attributable to a misconfigured
// deployment rather than "unknown task type".
func RegisterCoreHandlers(registry *HandlerRegistry, deps CoreHandlerDeps) {
	registry.Register(TaskScan, NewScanHandler(deps.Scanner))
	registry.Register(TaskAnalyze, NewAnalyzeHandler(deps.Probe, deps.Library, deps.Store))
	registry.Register(TaskRefreshMetadata, NewRefreshMetadataHandler(deps.TMDB, deps.OMDb, deps.Library, deps.Store))
	registry.Register(TaskSyncWatchHistory, NewSyncWatchHistoryHandler(deps.History, deps.Library))
}
