package engine

// Package engine implements the download orchestration core: playlist
// expansion, the session/disk duplicate gate, a bounded worker pool with a
// FIFO queue, the blocking overwrite handshake, and ordered event delivery
// to the presentation layer.
