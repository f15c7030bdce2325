package features

import "math"

const (
	typingSuspectCPM        = 500.0
	typingSuspectKeyPresses = 10.0

	voicedRatioCeiling = 0.8
	rateCeiling        = 1.0
)

// AddDerived returns a copy of v extended with the model-only features. The
// trainer and the classifier both call it, so the columns never drift apart.
func AddDerived(v Vector) Vector {
	out := v.Clone()

	durSec := math.Max(v.Get(DurationSeconds), 1)
	durMin := math.Max(durSec, minRateWindowSeconds) / 60

	out[VoicedRatio] = math.Min(v.Get(VoicedSeconds)/durSec, voicedRatioCeiling)
	out.SetBool(MobileDetectedFlag, v.Get(MobileDetectedCount) > 0 || v.Get(MobileDetected) > 0)
	out[KeyPressesPerMinute] = v.Get(KeyPressCount) / durMin
	out.SetBool(TypingSpeedSuspect, v.Get(CharsPerMinute) > typingSuspectCPM && v.Get(KeyPressCount) < typingSuspectKeyPresses)

	out[NoFaceRate] = math.Min(v.Get(NoFaceCount)/durMin, rateCeiling)
	out[MultipleFacesRate] = math.Min(v.Get(MultipleFacesCount)/durMin, rateCeiling)
	out[FaceMismatchRate] = math.Min(v.Get(FaceMismatchCount)/durMin, rateCeiling)
	out[OffscreenRatio] = math.Min(v.Get(OffscreenSeconds)/durSec, rateCeiling)

	return out
}
