package mathx

// FNV-1a 32-bit parameters. Every derived roll in the sim depends on these staying fixed.
const (
	fnvOffset32 uint32 = 2166136261
	fnvPrime32  uint32 = 16777619
)

// Hash32 is FNV-1a over the bytes of key. uint32 multiplication wraps, which is exactly the
// arithmetic stored seeds were rolled with.
func Hash32(key string) uint32 {
	h := fnvOffset32
	for i := 0; i < len(key); i++ {
		h ^= uint32(key[i])
		h *= fnvPrime32
	}
	return h
}

// Pick returns Hash32(key) % n, or 0 when n <= 0.
func Pick(key string, n int) int {
	if n <= 0 {
		return 0
	}
	return int(uint64(Hash32(key)) % uint64(n))
}
