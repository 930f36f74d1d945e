package harness

// zeroSeedReplacement keeps the generator off its fixed point at zero.
const zeroSeedReplacement int32 = -1640531527 // 0x9E3779B9

// XorShift is Marsaglia's 32-bit xorshift generator with the shift triple 6, 21, 7.
//
// It is not safe for concurrent use. Every worker owns its own instance.
type XorShift struct {
	seed int32
}

// NewXorShift creates a generator. A zero seed would only ever produce zero and is replaced.
func NewXorShift(seed int32) *XorShift {
	if seed == 0 {
		seed = zeroSeedReplacement
	}

	return &XorShift{seed: seed}
}

// Next advances the generator and returns the new state.
func (x *XorShift) Next() int32 {
	s := x.seed
	s ^= s << 6
	s ^= int32(uint32(s) >> 21)
	s ^= s << 7
	x.seed = s

	return s
}
