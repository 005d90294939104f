package sim

// Precision groups the tolerances used for every comparison against zero or a bound.
// Solved quantities are floating point; the kernel never tests them for exact equality.
type Precision struct {
	WorkAmount float64 `yaml:"work_amount"` // remaining/usage/weights, scaled by the tested bound where relevant
	Timing     float64 `yaml:"timing"`      // dates and durations
	BMF        float64 `yaml:"bmf"`         // rate comparisons inside the BMF fixed point
}

// DefaultPrecision is the precision used when a KernelConfig leaves a field unset.
var DefaultPrecision = Precision{
	WorkAmount: 1e-5,
	Timing:     1e-9,
	BMF:        1e-12,
}

// withDefaults fills zero fields from DefaultPrecision.
func (p Precision) withDefaults() Precision {
	if p.WorkAmount <= 0 {
		p.WorkAmount = DefaultPrecision.WorkAmount
	}
	if p.Timing <= 0 {
		p.Timing = DefaultPrecision.Timing
	}
	if p.BMF <= 0 {
		p.BMF = DefaultPrecision.BMF
	}
	return p
}

// DoubleUpdate subtracts value from *v and snaps the result to 0 when it falls below precision.
func DoubleUpdate(v *float64, value, precision float64) {
	*v -= value
	if *v < precision {
		*v = 0.0
	}
}

// DoublePositive reports whether value is strictly greater than precision.
func DoublePositive(value, precision float64) bool {
	return value > precision
}

// DoubleEquals reports whether a and b differ by less than precision.
func DoubleEquals(a, b, precision float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < precision
}
