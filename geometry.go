package sdbx

// Geometry gives full control over the data file size limits. Zero
// fields keep the engine default for that parameter; MapSize on
// EnvOptions is a shorthand for a fixed-size Geometry.
type Geometry struct {
	// SizeLower is the lower limit for the datafile size.
	SizeLower int64

	// SizeNow is the current datafile size to set.
	SizeNow int64

	// SizeUpper is the upper limit for the datafile size.
	SizeUpper int64

	// GrowthStep is the grow step in bytes. The engine rounds it to
	// the OS allocation granularity.
	GrowthStep int64

	// ShrinkThreshold is the shrink threshold in bytes.
	ShrinkThreshold int64

	// PageSize is the database page size. Only meaningful when the
	// environment is created; must be a power of two between the
	// engine's minimum and maximum.
	PageSize int
}

// geoVal translates the zero value to the engine's keep-default marker.
func geoVal(v int64) int {
	if v == 0 {
		return -1
	}
	return int(v)
}

func geoPageSize(v int) int {
	if v == 0 {
		return -1
	}
	return v
}
