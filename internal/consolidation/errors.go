package consolidation

import "errors"

var (
	errMinSamplesTooLow     = errors.New("consolidation: DBSCANMinSamples must be >= 5 per spec §4.6.3")
	errCreativeBandInverted = errors.New("consolidation: CreativeBandMin must be < CreativeBandMax")
)
