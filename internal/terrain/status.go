package terrain

// ChunkStatus is the lifecycle state of one cache slot. Transitions:
// Unloaded -> Loading on reserve, Loading -> Loaded (or Failed) by the
// loader, anything -> Unloaded on release.
type ChunkStatus uint32

const (
	StatusUnloaded ChunkStatus = iota
	StatusLoading
	StatusLoaded
	StatusFailed
)

func (s ChunkStatus) String() string {
	switch s {
	case StatusUnloaded:
		return "UNLOADED"
	case StatusLoading:
		return "LOADING"
	case StatusLoaded:
		return "LOADED"
	case StatusFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}
