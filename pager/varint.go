package pager

// MaxVarintLen is the longest encoding DecodeVarint will consume.
const MaxVarintLen = 9

// DecodeVarint reads a base-128 variable-length integer from buf and returns
// the value and the number of bytes consumed.
//
// Each byte contributes its low 7 bits, shifted left by 7 more than the byte
// before it. Decoding stops at the first byte with the high bit clear, or after
// the ninth byte, which contributes all 8 of its bits. A truncated buffer
// yields the value accumulated over the bytes present. Callers must pass at
// least one byte; an empty buffer decodes as (0, 0).
func DecodeVarint(buf []byte) (uint64, int) {
	var value uint64
	for i := 0; i < len(buf) && i < MaxVarintLen; i++ {
		b := buf[i]
		if i == MaxVarintLen-1 {
			value |= uint64(b) << 56
			return value, MaxVarintLen
		}
		value |= uint64(b&0x7f) << (7 * i)
		if b&0x80 == 0 {
			return value, i + 1
		}
	}
	return value, len(buf)
}

// EncodeVarint is the inverse of DecodeVarint.
func EncodeVarint(v uint64) []byte {
	if v >= 1<<56 {
		out := make([]byte, MaxVarintLen)
		for i := 0; i < MaxVarintLen-1; i++ {
			out[i] = byte(v&0x7f) | 0x80
			v >>= 7
		}
		out[MaxVarintLen-1] = byte(v)
		return out
	}

	out := make([]byte, 0, MaxVarintLen)
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}
