package vector_math

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// PutMat4 writes m column by column as little endian float32, matching std140 mat4 layout. dst needs 64 bytes.
func PutMat4(dst []byte, m mgl32.Mat4) {
	for i, f := range m {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(f))
	}
}

// PutVec4 writes v as four little endian float32. dst needs 16 bytes.
func PutVec4(dst []byte, v mgl32.Vec4) {
	for i, f := range v {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(f))
	}
}
