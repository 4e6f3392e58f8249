// Copyright (C) 2025, Simweaver Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package sim

import (
	"encoding/binary"
	"math"

	"github.com/goki/mat32"

	"github.com/simweaver/simbridge/protocol"
)

// farDepth is reported where no object is in range.
const farDepth = 10.0

// render synthesizes observations for every sensor of every agent. The
// images are not ray-traced; they are deterministic functions of the
// sensor pose, the scene contents, and the seeded noise stream, which is
// enough to exercise the full observation path.
func (e *Engine) render() protocol.Observations {
	obs := make(protocol.Observations, len(e.agents))
	for _, body := range e.agents {
		agentObs := make(protocol.AgentObservations, len(body.sensors))
		for _, def := range body.sensors {
			agentObs[def.id] = e.renderSensor(body, def)
		}
		obs[body.id] = agentObs
	}
	return obs
}

func (e *Engine) renderSensor(body *agentBody, def sensorDef) protocol.SensorObservations {
	relPos := body.rigPos.Add(rotate(body.rigRot, def.offset))
	relRot := quatMul(body.rigRot, def.rotation)
	worldPos := body.pos.Add(rotate(body.rot, relPos))
	worldRot := quatMul(body.rot, relRot)

	h, w := def.res.Height, def.res.Width
	depth, semantic := e.nearestObject(worldPos)

	out := protocol.SensorObservations{
		protocol.ModalityRGBA:            e.renderRGBA(h, w, semantic),
		protocol.ModalityDepth:           renderDepth(h, w, depth/def.zoom),
		protocol.ModalitySensorFrameData: matrixTensor(transformMatrix(relPos, relRot)),
		protocol.ModalityWorldCamera:     matrixTensor(transformMatrix(worldPos, worldRot)),
	}
	if def.semantic {
		out[protocol.ModalitySemantic] = renderSemantic(h, w, semantic)
	}
	return out
}

// nearestObject reports the distance to the closest object and its
// semantic id. With an empty scene the depth saturates and the id is zero.
func (e *Engine) nearestObject(from mat32.Vec3) (float64, protocol.SemanticID) {
	best := float32(math.Inf(1))
	var sem protocol.SemanticID
	for _, obj := range e.objects {
		if d := obj.pos.Sub(from).Length(); d < best {
			best = d
			sem = obj.semantic
		}
	}
	if math.IsInf(float64(best), 1) {
		return farDepth, 0
	}
	return float64(best), sem
}

// renderRGBA paints a gradient tinted by the dominant semantic class, with
// low-order dither from the seeded noise stream.
func (e *Engine) renderRGBA(h, w int, sem protocol.SemanticID) *protocol.Tensor {
	data := make([]byte, h*w*4)
	tint := byte(sem * 29)
	i := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			noise := byte(e.rng.Uint32() & 0x07)
			data[i] = byte(x*255/max(w-1, 1)) ^ noise
			data[i+1] = byte(y * 255 / max(h-1, 1))
			data[i+2] = tint
			data[i+3] = 255
			i += 4
		}
	}
	t, _ := protocol.NewTensor(protocol.Uint8, []int{h, w, 4}, data)
	return t
}

// renderDepth fills the frame with the scene depth, falling off slightly
// toward the frame edges.
func renderDepth(h, w int, depth float64) *protocol.Tensor {
	data := make([]byte, h*w*4)
	i := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dy := float64(y)/float64(max(h-1, 1)) - 0.5
			dx := float64(x)/float64(max(w-1, 1)) - 0.5
			v := float32(depth * (1 + 0.1*(dx*dx+dy*dy)))
			binary.LittleEndian.PutUint32(data[i:], math.Float32bits(v))
			i += 4
		}
	}
	t, _ := protocol.NewTensor(protocol.Float32, []int{h, w}, data)
	return t
}

// renderSemantic labels the central patch with the nearest object's class;
// the border reads as background.
func renderSemantic(h, w int, sem protocol.SemanticID) *protocol.Tensor {
	data := make([]byte, h*w*4)
	i := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var v int32
			if y >= h/4 && y < h-h/4 && x >= w/4 && x < w-w/4 {
				v = int32(sem)
			}
			binary.LittleEndian.PutUint32(data[i:], uint32(v))
			i += 4
		}
	}
	t, _ := protocol.NewTensor(protocol.Int32, []int{h, w}, data)
	return t
}

func matrixTensor(m []float64) *protocol.Tensor {
	data := make([]byte, len(m)*8)
	for i, v := range m {
		binary.LittleEndian.PutUint64(data[i*8:], math.Float64bits(v))
	}
	t, _ := protocol.NewTensor(protocol.Float64, []int{4, 4}, data)
	return t
}
