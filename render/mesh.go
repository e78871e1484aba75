// Copyright 2025 The vkflight Authors. All rights reserved.

package render

import (
	"bytes"
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/pkg/errors"
	"github.com/vkngwrapper/core/v2/common"
	vkngmath "github.com/vkngwrapper/math"

	"vkflight/driver"
)

// Vertex is one interleaved vertex of the drawn mesh.
type Vertex struct {
	Position vkngmath.Vec2[float32]
	Color    vkngmath.Vec3[float32]
}

var quadVertices = []Vertex{
	{Position: vkngmath.Vec2[float32]{X: -0.5, Y: -0.5}, Color: vkngmath.Vec3[float32]{X: 1, Y: 0, Z: 0}},
	{Position: vkngmath.Vec2[float32]{X: 0.5, Y: -0.5}, Color: vkngmath.Vec3[float32]{X: 0, Y: 1, Z: 0}},
	{Position: vkngmath.Vec2[float32]{X: 0.5, Y: 0.5}, Color: vkngmath.Vec3[float32]{X: 0, Y: 0, Z: 1}},
	{Position: vkngmath.Vec2[float32]{X: -0.5, Y: 0.5}, Color: vkngmath.Vec3[float32]{X: 1, Y: 1, Z: 1}},
}

var quadIndices = []uint16{0, 1, 2, 2, 3, 0}

func vertexStride() int {
	return binary.Size(Vertex{})
}

func vertexAttrs() []driver.VertexAttr {
	v := Vertex{}
	return []driver.VertexAttr{
		{
			Format: driver.Float32x2,
			Offset: int(unsafe.Offsetof(v.Position)),
			Nr:     0,
		},
		{
			Format: driver.Float32x3,
			Offset: int(unsafe.Offsetof(v.Color)),
			Nr:     1,
		},
	}
}

func vertexData() ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, common.ByteOrder, quadVertices); err != nil {
		return nil, errors.Wrap(err, "serializing vertices")
	}
	return buf.Bytes(), nil
}

func indexData() ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, common.ByteOrder, quadIndices); err != nil {
		return nil, errors.Wrap(err, "serializing indices")
	}
	return buf.Bytes(), nil
}

// Mesh holds the device-private geometry buffers. They do not
// depend on the chain and survive rebuilds.
type Mesh struct {
	verts    driver.Buffer
	indices  driver.Buffer
	idxCount int
}

// NewMesh uploads the quad geometry to device-private buffers.
func NewMesh(dev driver.Device) (*Mesh, error) {
	vdata, err := vertexData()
	if err != nil {
		return nil, err
	}
	idata, err := indexData()
	if err != nil {
		return nil, err
	}
	verts, err := dev.NewBuffer(vdata, driver.UVertexData)
	if err != nil {
		return nil, errors.Wrap(err, "creating vertex buffer")
	}
	indices, err := dev.NewBuffer(idata, driver.UIndexData)
	if err != nil {
		verts.Destroy()
		return nil, errors.Wrap(err, "creating index buffer")
	}
	return &Mesh{
		verts:    verts,
		indices:  indices,
		idxCount: len(quadIndices),
	}, nil
}

// Destroy releases the geometry buffers.
func (m *Mesh) Destroy() {
	m.indices.Destroy()
	m.verts.Destroy()
}

// Transform matches the constant-data block declared by the vertex
// shader: three tightly packed column-major 4x4 matrices.
type Transform struct {
	Model vkngmath.Mat4x4[float32]
	View  vkngmath.Mat4x4[float32]
	Proj  vkngmath.Mat4x4[float32]
}

func transformSize() int {
	return binary.Size(Transform{})
}

// transformData computes the constant data for a frame: a quad
// spinning a quarter turn per second, viewed from above at an angle.
func transformData(elapsed float64, extent driver.Extent2D) ([]byte, error) {
	aspect := float32(1)
	if extent.Height > 0 {
		aspect = float32(extent.Width) / float32(extent.Height)
	}
	angle := math.Mod(elapsed, 4) * math.Pi / 2

	var t Transform
	t.Model.SetRotationZ(angle)
	t.View.SetLookAt(
		&vkngmath.Vec3[float32]{X: 2, Y: 2, Z: 2},
		&vkngmath.Vec3[float32]{X: 0, Y: 0, Z: 0},
		&vkngmath.Vec3[float32]{X: 0, Y: 0, Z: 1},
	)
	t.Proj.SetPerspective(math.Pi/4, aspect, 0.1, 10)

	var buf bytes.Buffer
	if err := binary.Write(&buf, common.ByteOrder, &t); err != nil {
		return nil, errors.Wrap(err, "serializing transform")
	}
	return buf.Bytes(), nil
}
