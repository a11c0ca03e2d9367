package playback

// The remote service expresses pitch as an offset in [-10, +10] with 0
// as neutral; the local daemon expects a multiplier in [0.5, 2.0] with
// 1.0 as neutral. The conversion is a linear rescale, not a
// passthrough: remote 0 → local 1.0, remote 10 → local 2.0.

const (
	localPitchMin = 0.5
	localPitchMax = 2.0
)

// RemotePitchToLocal converts a remote pitch offset to the local
// daemon's multiplier scale, clamped to the daemon's accepted range.
func RemotePitchToLocal(remote float64) float64 {
	local := 1.0 + remote/10.0
	if local < localPitchMin {
		return localPitchMin
	}
	if local > localPitchMax {
		return localPitchMax
	}
	return local
}
