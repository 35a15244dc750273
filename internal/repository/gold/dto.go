package gold

import (
	"encoding/binary"
	"math"
)

// vectorToBytes encodes FLOAT32 little-endian bytes as stored in hash fields and KNN params.
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
