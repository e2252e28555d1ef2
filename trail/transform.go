package trail

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Acqua1/neon-chronos/pose"
)

// landmarkTransform maps detector coordinates to world coordinates.
//
// Detector space: x,y normalized to [0,1] with the origin top-left and x
// growing to the subject's left (camera view). World space: [-1,1] on both
// axes, origin at the center, x mirrored so the rendered skeleton moves like
// a mirror image, y flipped so up is positive.
//
// Any landmark inside [0,1]² lands inside the world view; the render target
// owns the world→pixel mapping.
var landmarkTransform = mgl32.Scale3D(-2, -2, 1).Mul4(mgl32.Translate3D(-0.5, -0.5, 0))

// toWorld transforms a single landmark into world coordinates.
func toWorld(lm pose.Landmark) mgl32.Vec3 {
	v := mgl32.Vec4{float32(lm.X), float32(lm.Y), float32(lm.Z), 1}
	out := landmarkTransform.Mul4x1(v)
	return mgl32.Vec3{out.X(), out.Y(), out.Z()}
}
