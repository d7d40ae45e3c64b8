package mathx

func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func NonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
