package scene

import (
	"github.com/Carmen-Shannon/oxy-splat/common"
	"github.com/Carmen-Shannon/oxy-splat/engine/model"
	"github.com/Carmen-Shannon/oxy-splat/engine/sh"
	"github.com/go-gl/mathgl/mgl32"
)

// forward is the view direction used for a splat sitting exactly at the eye.
var forward = mgl32.Vec3{0, 0, 1}

func (s *scene) BakeView(eye mgl32.Vec3) {
	first := s.bands.FirstBanded()
	banded := s.count - first
	if banded > 0 {
		common.ParallelRange(s.pool, banded, packChunk, func(start, end int) {
			for k := start; k < end; k++ {
				i := first + k
				dir := mgl32.Vec3{s.positions[3*i], s.positions[3*i+1], s.positions[3*i+2]}.Sub(eye)
				if dir.Len() == 0 {
					dir = forward
				} else {
					dir = dir.Normalize()
				}

				rgb := sh.Eval(unpackSH(s.sh, k), s.bands.Band(i), dir)
				word := s.data[model.WordsPerSplat*i+7] &^ 0x00ffffff
				for c := range 3 {
					word |= uint32(common.ClampByte(float64(rgb[c])*255)) << (8 * c)
				}
				s.data[model.WordsPerSplat*i+7] = word
			}
		})
	}
	common.Logger().Debug("scene baked", "scene", s.name, "banded", max(banded, 0), "eye", eye)
	s.emit(Event{Kind: EventBaked, Count: s.count})
}
