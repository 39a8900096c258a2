package analysis

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// forward is the local viewing axis of a pose.
var forward = r3.Vec{Z: 1}

// identityDot is the dot product above which two rotations count as equal.
const identityDot = 1 - 1e-6

// rotate applies q to v. q need not be normalized.
func rotate(q quat.Number, v r3.Vec) r3.Vec {
	p := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	r := quat.Mul(quat.Mul(q, p), quat.Inv(q))
	return r3.Vec{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

// angleBetween returns the rotation angle between a and b in degrees.
func angleBetween(a, b quat.Number) float64 {
	na, nb := quat.Abs(a), quat.Abs(b)
	if na == 0 || nb == 0 {
		return 0
	}
	dot := (a.Real*b.Real + a.Imag*b.Imag + a.Jmag*b.Jmag + a.Kmag*b.Kmag) / (na * nb)
	dot = math.Min(math.Abs(dot), 1)
	if dot > identityDot {
		return 0
	}
	return math.Acos(dot) * 2 * 180 / math.Pi
}

// focusPoint intersects the forward ray of a pose with the plane y = 0.
// A ray parallel to the plane stays at its origin. A ray pointing away from the
// plane still yields the intersection behind its origin.
func focusPoint(pos r3.Vec, rot quat.Number) r3.Vec {
	dir := rotate(rot, forward)
	if math.Abs(dir.Y) < 1e-12 {
		return pos
	}
	t := -pos.Y / dir.Y
	return r3.Add(pos, r3.Scale(t, dir))
}
