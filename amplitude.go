package iqs

import "math"

// Scalar is the floating-point type backing amplitudes. The reference
// engine selects this at compile time via a template parameter; this
// module fixes it to float64.
type Scalar = float64

// Amplitude is a complex probability amplitude attached to an object.
type Amplitude struct {
	Re Scalar
	Im Scalar
}

// AbsSq returns the probability weight |a|^2.
func (a Amplitude) AbsSq() Scalar {
	return a.Re*a.Re + a.Im*a.Im
}

// Add returns a+b.
func (a Amplitude) Add(b Amplitude) Amplitude {
	return Amplitude{Re: a.Re + b.Re, Im: a.Im + b.Im}
}

// Scale multiplies the amplitude by a real scalar.
func (a Amplitude) Scale(s Scalar) Amplitude {
	return Amplitude{Re: a.Re * s, Im: a.Im * s}
}

// Mul returns the complex product a*b.
func (a Amplitude) Mul(b Amplitude) Amplitude {
	return Amplitude{
		Re: a.Re*b.Re - a.Im*b.Im,
		Im: a.Re*b.Im + a.Im*b.Re,
	}
}

// Abs returns the modulus |a|.
func (a Amplitude) Abs() Scalar {
	return math.Sqrt(a.AbsSq())
}
