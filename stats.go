package main

import "fmt"

// GetStats returns a point-in-time snapshot of the server's performance
// counters, safe to log. Kept as a thin wrapper (rather than inlining
// s.stats.Snapshot() at call sites) because the teacher's GetStats was the
// server's own public accessor for this.
func (s *Server) GetStats() StatsSnapshot {
	return s.stats.Snapshot()
}

// String renders a one-line human summary of the snapshot.
func (s StatsSnapshot) String() string {
	return fmt.Sprintf(
		"ops=%d get=%d set=%d del=%d conns=%d hit_rate=%.2f bytes_in=%d bytes_out=%d",
		s.TotalOps, s.GetOps, s.SetOps, s.DelOps, s.Connections, s.HitRate, s.BytesRead, s.BytesWritten,
	)
}
