// Package quantile implements the P-square algorithm (Jain & Chlamtac, 1985)
// for streaming quantile estimation in constant space.
//
// Nothing in this package is safe for concurrent use.
package quantile

import (
	"slices"
)

// Estimator tracks a single target quantile p, in [0, 1].
type Estimator struct {
	p     float64
	count int
	// marker heights, actual positions, desired positions and increments
	q   [5]float64
	n   [5]int
	np  [5]float64
	dn  [5]float64
	buf [5]float64
}

// New returns an Estimator for p, clamped to [0, 1].
func New(p float64) *Estimator {
	p = min(max(p, 0), 1)
	return &Estimator{
		p:  p,
		dn: [5]float64{0, p / 2, p, (1 + p) / 2, 1},
	}
}

// Observe adds a value.
func (x *Estimator) Observe(v float64) {
	x.count++

	if x.count <= len(x.buf) {
		x.buf[x.count-1] = v
		if x.count == len(x.buf) {
			x.q = x.buf
			slices.Sort(x.q[:])
			x.n = [5]int{0, 1, 2, 3, 4}
			x.np = [5]float64{0, 2 * x.p, 4 * x.p, 2 + 2*x.p, 4}
		}
		return
	}

	var k int
	switch {
	case v < x.q[0]:
		x.q[0] = v
	case v >= x.q[4]:
		x.q[4] = v
		k = 3
	default:
		for k = 0; k < 3; k++ {
			if v < x.q[k+1] {
				break
			}
		}
	}

	for i := k + 1; i < 5; i++ {
		x.n[i]++
	}
	for i := range x.np {
		x.np[i] += x.dn[i]
	}

	for i := 1; i < 4; i++ {
		d := x.np[i] - float64(x.n[i])
		if (d < 1 || x.n[i+1]-x.n[i] <= 1) && (d > -1 || x.n[i-1]-x.n[i] >= -1) {
			continue
		}
		s := 1
		if d < 0 {
			s = -1
		}
		if h := x.parabolic(i, s); x.q[i-1] < h && h < x.q[i+1] {
			x.q[i] = h
		} else {
			x.q[i] = x.linear(i, s)
		}
		x.n[i] += s
	}
}

func (x *Estimator) parabolic(i, s int) float64 {
	d := float64(s)
	n0, n1, n2 := float64(x.n[i-1]), float64(x.n[i]), float64(x.n[i+1])
	return x.q[i] + d/(n2-n0)*((n1-n0+d)*(x.q[i+1]-x.q[i])/(n2-n1)+
		(n2-n1-d)*(x.q[i]-x.q[i-1])/(n1-n0))
}

func (x *Estimator) linear(i, s int) float64 {
	return x.q[i] + float64(s)*(x.q[i+s]-x.q[i])/float64(x.n[i+s]-x.n[i])
}

// Value returns the current estimate, or 0 if nothing was observed.
func (x *Estimator) Value() float64 {
	switch {
	case x.count == 0:
		return 0
	case x.count < len(x.buf):
		sorted := slices.Clone(x.buf[:x.count])
		slices.Sort(sorted)
		return sorted[int(float64(x.count-1)*x.p)]
	default:
		return x.q[2]
	}
}

// Count returns the number of observations.
func (x *Estimator) Count() int { return x.count }
