package metrics

import "sync/atomic"

type SyncMetrics struct {
	MappedCount     atomic.Int32
	UnmappedCount   atomic.Int32
	SubmittedChunks atomic.Int32
	FailedChunks    atomic.Int32
	PolledChunks    atomic.Int32
}
