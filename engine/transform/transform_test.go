package transform

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-pbr/common"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTransforms() []Transform {
	return []Transform{
		{Translation: mgl32.Vec3{1, 2, 3}, Rotation: mgl32.QuatRotate(0.4, mgl32.Vec3{0, 1, 0}), Scale: mgl32.Vec3{1, 1, 1}},
		{Translation: mgl32.Vec3{-4, 0.5, 2}, Rotation: mgl32.QuatRotate(1.1, mgl32.Vec3{1, 1, 0}.Normalize()), Scale: mgl32.Vec3{2, 0.5, 1.5}},
		{Translation: mgl32.Vec3{0, -3, 7}, Rotation: mgl32.QuatRotate(-2.3, mgl32.Vec3{0, 0, 1}), Scale: mgl32.Vec3{0.25, 3, 1}},
		Identity(),
	}
}

func TestComposeIsAssociative(t *testing.T) {
	ts := sampleTransforms()
	for i := range ts {
		for j := range ts {
			for k := range ts {
				a, b, c := ts[i].Matrix(), ts[j].Matrix(), ts[k].Matrix()
				left := Compose(Compose(a, b), c)
				right := Compose(a, Compose(b, c))
				assert.True(t, common.ApproxEqualMat4(left, right, 1e-4), "chain %d,%d,%d", i, j, k)
			}
		}
	}
}

func TestComposeOrderIsParentTimesLocal(t *testing.T) {
	parent := FromTranslation(10, 0, 0).Matrix()
	local := Transform{Rotation: mgl32.QuatIdent(), Scale: mgl32.Vec3{2, 2, 2}}.Matrix()

	world := Compose(parent, local)
	p := world.Mul4x1(mgl32.Vec4{1, 0, 0, 1})
	// scale first, then the parent's translation
	assert.InDelta(t, 12.0, p.X(), 1e-6)
}

func TestIdentityMatrix(t *testing.T) {
	assert.Equal(t, mgl32.Ident4(), Identity().Matrix())
}

func TestNormalMatrix(t *testing.T) {
	tr := Transform{Translation: mgl32.Vec3{5, 0, 0}, Rotation: mgl32.QuatIdent(), Scale: mgl32.Vec3{2, 1, 1}}
	n, err := NormalMatrix(tr.Matrix())
	require.NoError(t, err)

	// inverse-transpose of a pure scale is the reciprocal scale
	assert.InDelta(t, 0.5, n.At(0, 0), 1e-6)
	assert.InDelta(t, 1.0, n.At(1, 1), 1e-6)

	// the normal matrix times the transpose of the world matrix is the identity
	check := n.Transpose().Mul4(tr.Matrix())
	assert.True(t, common.ApproxEqualMat4(check, mgl32.Ident4(), 1e-5))
}

func TestNormalMatrixSingular(t *testing.T) {
	flat := Transform{Rotation: mgl32.QuatIdent(), Scale: mgl32.Vec3{1, 0, 1}}
	n, err := NormalMatrix(flat.Matrix())
	assert.ErrorIs(t, err, ErrSingularMatrix)
	assert.Equal(t, mgl32.Ident4(), n)
	for _, v := range n {
		assert.False(t, v != v, "NaN in fallback normal matrix")
	}

	_, err = Resolve(mgl32.Ident4(), flat.Matrix())
	assert.ErrorIs(t, err, ErrSingularMatrix)
}

func TestNormalMatrixAcceptsSmallScales(t *testing.T) {
	tests := []struct {
		name  string
		scale mgl32.Vec3
	}{
		{"uniform 1e-5", mgl32.Vec3{1e-5, 1e-5, 1e-5}},
		{"mixed small", mgl32.Vec3{1e-4, 1, 1e-3}},
		{"large", mgl32.Vec3{1e4, 1e4, 1e4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := Transform{Rotation: mgl32.QuatRotate(0.7, mgl32.Vec3{0, 1, 0}), Scale: tt.scale}
			n, err := NormalMatrix(tr.Matrix())
			require.NoError(t, err)
			check := n.Transpose().Mul4(tr.Matrix())
			assert.True(t, common.ApproxEqualMat4(check, mgl32.Ident4(), 1e-3), "%v", check)
		})
	}
}

func TestNormalMatrixRejectsCollapsedBasis(t *testing.T) {
	sheared := mgl32.Mat4FromCols(
		mgl32.Vec4{1, 0, 0, 0},
		mgl32.Vec4{1, 1e-8, 0, 0},
		mgl32.Vec4{0, 0, 1, 0},
		mgl32.Vec4{0, 0, 0, 1},
	)
	_, err := NormalMatrix(sheared)
	assert.ErrorIs(t, err, ErrSingularMatrix)
}

func TestTransformUniformMarshal(t *testing.T) {
	w, err := Resolve(mgl32.Ident4(), FromTranslation(1, 2, 3).Matrix())
	require.NoError(t, err)
	u := w.Uniform()
	buf := u.Marshal()
	require.Len(t, buf, 128)
	assert.Equal(t, w.Model, common.ReadMat4(buf[0:64]))
	assert.Equal(t, w.Normal, common.ReadMat4(buf[64:128]))
	assert.Contains(t, GPUTransformUniformSource, "struct TransformUniform")
}
