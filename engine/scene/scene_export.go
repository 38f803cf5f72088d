package scene

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-splat/common"
	"github.com/Carmen-Shannon/oxy-splat/engine/model"
	"github.com/Carmen-Shannon/oxy-splat/engine/sh"
	"github.com/go-gl/mathgl/mgl32"
)

// row rebuilds the 32-byte record of splat i from the logical arrays and the rgba word.
func (s *scene) row(i int) model.Row {
	var r model.Row
	copy(r.Position[:], s.positions[3*i:3*i+3])
	copy(r.Scale[:], s.scales[3*i:3*i+3])
	binary.LittleEndian.PutUint32(r.Color[:], s.data[model.WordsPerSplat*i+7])
	r.Rotation = model.QuantizeRotation(mgl32.Quat{
		W: s.rotations[4*i],
		V: mgl32.Vec3{s.rotations[4*i+1], s.rotations[4*i+2], s.rotations[4*i+3]},
	})
	return r
}

func (s *scene) Export(w io.Writer) error {
	bw := bufio.NewWriter(w)
	buf := make([]byte, model.RowLength)
	for i := 0; i < s.count; i++ {
		r := s.row(i)
		r.MarshalTo(buf)
		if _, err := bw.Write(buf); err != nil {
			return fmt.Errorf("export row %d: %w", i, err)
		}
	}
	return bw.Flush()
}

// uniformBand returns the band level shared by every splat, or -1 for a mix.
func (s *scene) uniformBand() int {
	for b := 0; b <= sh.MaxDegree; b++ {
		if s.bands == model.UniformBands(s.count, b) {
			return b
		}
	}
	return -1
}

func (s *scene) ExportPLY(w io.Writer) error {
	band := max(s.uniformBand(), 0)
	if s.count == 0 {
		band = 0
	}
	stride := model.SHStride(band)
	rest := 3 * stride

	names := []string{"x", "y", "z", "f_dc_0", "f_dc_1", "f_dc_2"}
	for n := range rest {
		names = append(names, "f_rest_"+strconv.Itoa(n))
	}
	names = append(names, "opacity", "scale_0", "scale_1", "scale_2", "rot_0", "rot_1", "rot_2", "rot_3")

	var hdr strings.Builder
	hdr.WriteString("ply\nformat binary_little_endian 1.0\n")
	fmt.Fprintf(&hdr, "element vertex %d\n", s.count)
	for _, name := range names {
		fmt.Fprintf(&hdr, "property float %s\n", name)
	}
	hdr.WriteString("end_header\n")

	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(hdr.String()); err != nil {
		return fmt.Errorf("export header: %w", err)
	}

	values := make([]float32, len(names))
	buf := make([]byte, 4*len(names))
	for i := 0; i < s.count; i++ {
		r := s.row(i)
		values = values[:0]
		values = append(values, r.Position[:]...)

		if band > 0 {
			coeffs := unpackSH(s.sh, i)
			values = append(values, coeffs[:3]...)
			for n := range rest {
				values = append(values, coeffs[model.SHSlot(n, stride)])
			}
		} else {
			for c := range 3 {
				values = append(values, sh.RGBToSH(float32(r.Color[c])/255))
			}
		}

		values = append(values,
			float32(common.Logit(float64(r.Color[3])/255)),
			float32(math.Log(float64(r.Scale[0]))),
			float32(math.Log(float64(r.Scale[1]))),
			float32(math.Log(float64(r.Scale[2]))),
			s.rotations[4*i], s.rotations[4*i+1], s.rotations[4*i+2], s.rotations[4*i+3],
		)

		for k, v := range values {
			binary.LittleEndian.PutUint32(buf[4*k:], math.Float32bits(v))
		}
		if _, err := bw.Write(buf); err != nil {
			return fmt.Errorf("export splat %d: %w", i, err)
		}
	}
	return bw.Flush()
}
