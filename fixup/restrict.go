package fixup

import (
	"fmt"

	"amrfluid/amr"
	"amrfluid/core"
)

func checkSg(sg ...int) error {
	for _, s := range sg {
		if s != 0 && s != 1 {
			return fmt.Errorf("invalid storage generation %d", s)
		}
	}
	return nil
}

// Restrict replaces coarse data covered by the finer level with the average of
// the fine data: cell-centered variables over the eight children, face B over
// the four fine faces tiling each coarse face
type Restrict struct {
	H *amr.Hierarchy
}

func (r *Restrict) Restrict(lv int, req Request) error {
	coarse, fine, err := r.H.Pair(lv)
	if err != nil {
		return err
	}
	if err := checkSg(req.FluSrc, req.FluDst, req.MagSrc, req.MagDst); err != nil {
		return err
	}
	box := fine.Box

	if req.Mask.Has(FieldTotal) {
		src, dst := fine.Flu[req.FluSrc], coarse.Flu[req.FluDst]
		for k := 0; k < box.Size; k++ {
			for j := 0; j < box.Size; j++ {
				for i := 0; i < box.Size; i++ {
					c := dst.Idx(box.Lo[0]+i, box.Lo[1]+j, box.Lo[2]+k)
					for v := range dst.Data {
						sum := 0.0
						for dk := 0; dk < 2; dk++ {
							for dj := 0; dj < 2; dj++ {
								for di := 0; di < 2; di++ {
									sum += src.Data[v][src.Idx(2*i+di, 2*j+dj, 2*k+dk)]
								}
							}
						}
						dst.Data[v][c] = 0.125 * sum
					}
				}
			}
		}
	}

	if req.HasMag && req.Mask.Has(FieldMag) {
		src, dst := fine.Mag[req.MagSrc], coarse.Mag[req.MagDst]
		if src == nil || dst == nil {
			return fmt.Errorf("level %d: magnetic restriction on a hydro hierarchy", lv)
		}
		restrictFaces(src, dst, box)
	}
	return nil
}

func restrictFaces(src, dst *core.FaceField, box amr.Box) {
	s := box.Size
	lo := box.Lo
	for k := 0; k < s; k++ {
		for j := 0; j < s; j++ {
			for i := 0; i <= s; i++ {
				fi, fj, fk := 2*i, 2*j, 2*k
				dst.X[dst.IdxX(lo[0]+i, lo[1]+j, lo[2]+k)] = 0.25 * (src.X[src.IdxX(fi, fj, fk)] + src.X[src.IdxX(fi, fj+1, fk)] +
					src.X[src.IdxX(fi, fj, fk+1)] + src.X[src.IdxX(fi, fj+1, fk+1)])
			}
		}
	}
	for k := 0; k < s; k++ {
		for j := 0; j <= s; j++ {
			for i := 0; i < s; i++ {
				fi, fj, fk := 2*i, 2*j, 2*k
				dst.Y[dst.IdxY(lo[0]+i, lo[1]+j, lo[2]+k)] = 0.25 * (src.Y[src.IdxY(fi, fj, fk)] + src.Y[src.IdxY(fi+1, fj, fk)] +
					src.Y[src.IdxY(fi, fj, fk+1)] + src.Y[src.IdxY(fi+1, fj, fk+1)])
			}
		}
	}
	for k := 0; k <= s; k++ {
		for j := 0; j < s; j++ {
			for i := 0; i < s; i++ {
				fi, fj, fk := 2*i, 2*j, 2*k
				dst.Z[dst.IdxZ(lo[0]+i, lo[1]+j, lo[2]+k)] = 0.25 * (src.Z[src.IdxZ(fi, fj, fk)] + src.Z[src.IdxZ(fi+1, fj, fk)] +
					src.Z[src.IdxZ(fi, fj+1, fk)] + src.Z[src.IdxZ(fi+1, fj+1, fk)])
			}
		}
	}
}
