package trail

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Acqua1/neon-chronos/pose"
)

func TestToWorld(t *testing.T) {
	t.Parallel()

	t.Run("center maps to origin", func(t *testing.T) {
		t.Parallel()
		v := toWorld(pose.Landmark{X: 0.5, Y: 0.5})
		assert.InDelta(t, 0, v.X(), 1e-6)
		assert.InDelta(t, 0, v.Y(), 1e-6)
	})

	t.Run("x is mirrored", func(t *testing.T) {
		t.Parallel()
		// Camera-left (x=0) appears on the viewer's right (+1) like a mirror.
		left := toWorld(pose.Landmark{X: 0, Y: 0.5})
		right := toWorld(pose.Landmark{X: 1, Y: 0.5})
		assert.InDelta(t, 1, left.X(), 1e-6)
		assert.InDelta(t, -1, right.X(), 1e-6)
	})

	t.Run("y is flipped so up is positive", func(t *testing.T) {
		t.Parallel()
		top := toWorld(pose.Landmark{X: 0.5, Y: 0})
		bottom := toWorld(pose.Landmark{X: 0.5, Y: 1})
		assert.InDelta(t, 1, top.Y(), 1e-6)
		assert.InDelta(t, -1, bottom.Y(), 1e-6)
	})

	t.Run("depth passes through", func(t *testing.T) {
		t.Parallel()
		v := toWorld(pose.Landmark{X: 0.5, Y: 0.5, Z: -0.25})
		assert.InDelta(t, -0.25, v.Z(), 1e-6)
	})

	t.Run("unit square stays inside the view", func(t *testing.T) {
		t.Parallel()
		rng := rand.New(rand.NewSource(7))
		for i := 0; i < 500; i++ {
			v := toWorld(pose.Landmark{X: rng.Float64(), Y: rng.Float64()})
			assert.GreaterOrEqual(t, v.X(), float32(-1))
			assert.LessOrEqual(t, v.X(), float32(1))
			assert.GreaterOrEqual(t, v.Y(), float32(-1))
			assert.LessOrEqual(t, v.Y(), float32(1))
		}
	})
}
