package physics

// PassiveNormalizer rescales a subset of passive scalar densities so that their
// sum equals the gas density
type PassiveNormalizer interface {
	Normalize(dens float64, passive []float64, idx []int)
}

// PassiveNormalizerFunc adapts a function to PassiveNormalizer
type PassiveNormalizerFunc func(dens float64, passive []float64, idx []int)

func (f PassiveNormalizerFunc) Normalize(dens float64, passive []float64, idx []int) {
	f(dens, passive, idx)
}

// NormalizePassive scales passive[idx...] by dens/sum. passive is indexed from
// the first passive scalar, not from the start of the conserved set.
func NormalizePassive(dens float64, passive []float64, idx []int) {
	if len(idx) == 0 {
		return
	}
	sum := 0.0
	for _, v := range idx {
		sum += passive[v]
	}
	if !(sum > 0) {
		return
	}
	norm := dens / sum
	for _, v := range idx {
		passive[v] *= norm
	}
}
