package normalize

// IntensityBucket names the coarse activity band of a 0-100 intensity.
func IntensityBucket(intensity float64) string {
	switch {
	case intensity < 15:
		return "quiet"
	case intensity < 40:
		return "mild"
	case intensity < 70:
		return "active"
	case intensity < 90:
		return "strong"
	default:
		return "exceptional"
	}
}

// HarmonyBucket names the favorability band of a 0-100 harmony.
func HarmonyBucket(harmony float64) string {
	switch {
	case harmony < 25:
		return "tense"
	case harmony < 45:
		return "challenging"
	case harmony <= 55:
		return "neutral"
	case harmony <= 75:
		return "supportive"
	default:
		return "flowing"
	}
}
