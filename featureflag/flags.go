package featureflag

type Flag string

const (
	// Tiles partially in the frustum keep all their entities.
	FlagDisableEntityCulling Flag = "DISABLE_ENTITY_CULLING"

	// Occlusion records are replayed without testing tiles against the
	// frustum.
	FlagDisableTileCulling Flag = "DISABLE_TILE_CULLING"

	// The dynamic visibility pass runs every frame.
	FlagDisableVisibilityThrottle Flag = "DISABLE_VISIBILITY_THROTTLE"
)

var knownFlags = map[Flag]struct{}{
	FlagDisableEntityCulling:      {},
	FlagDisableTileCulling:        {},
	FlagDisableVisibilityThrottle: {},
}

// Known reports whether the flag is used by the server.
func (f Flag) Known() bool {
	_, ok := knownFlags[f]
	return ok
}
