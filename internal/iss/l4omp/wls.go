package l4omp

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/spotcall/internal/iss"
)

// refit solves the weighted least squares problem
//
//	min_β Σ_i w_i (x_i − Σ_j β_j d_ij)²
//
// over the background codes followed by the active gene codes, by QR on the
// √w-scaled system. It writes β into ws.coefs and the new residual
// x − Dβ into ws.residual.
func (m *Matcher) refit(ws *workspace, spot int, color []float64) error {
	n := len(color)
	nbg := m.cols.NChannels
	k := nbg + len(ws.active)
	if k > n {
		return &iss.DegenerateFitError{Spot: spot, Reason: fmt.Sprintf("%d unknowns for %d colour values", k, n)}
	}

	a := mat.NewDense(n, k, nil)
	b := mat.NewVecDense(n, nil)
	sw := make([]float64, n)
	for i, w := range ws.weights {
		sw[i] = math.Sqrt(w)
		b.SetVec(i, sw[i]*color[i])
	}
	for j := 0; j < k; j++ {
		code := m.dict.Column(m.column(ws, j))
		for i, v := range code {
			a.Set(i, j, sw[i]*v)
		}
	}

	var qr mat.QR
	qr.Factorize(a)
	if err := checkRank(&qr, k); err != nil {
		return &iss.DegenerateFitError{Spot: spot, Reason: err.Error()}
	}
	var beta mat.VecDense
	if err := qr.SolveVecTo(&beta, false, b); err != nil {
		return &iss.DegenerateFitError{Spot: spot, Reason: err.Error()}
	}
	for j := 0; j < k; j++ {
		if v := beta.AtVec(j); math.IsNaN(v) || math.IsInf(v, 0) {
			return &iss.DegenerateFitError{Spot: spot, Reason: "non-finite coefficient"}
		}
	}

	for i := range ws.coefs {
		ws.coefs[i] = 0
	}
	copy(ws.residual, color)
	for j := 0; j < k; j++ {
		col := m.column(ws, j)
		v := beta.AtVec(j)
		ws.coefs[col] = v
		for i, d := range m.dict.Column(col) {
			ws.residual[i] -= v * d
		}
	}
	return nil
}

// rankTol is the smallest |R_jj| relative to max |R_ii| accepted as full
// rank.
const rankTol = 1e-10

func checkRank(qr *mat.QR, k int) error {
	var r mat.Dense
	qr.RTo(&r)
	maxDiag := 0.0
	for j := 0; j < k; j++ {
		maxDiag = math.Max(maxDiag, math.Abs(r.At(j, j)))
	}
	if maxDiag == 0 {
		return fmt.Errorf("all-zero design matrix")
	}
	for j := 0; j < k; j++ {
		if math.Abs(r.At(j, j)) <= rankTol*maxDiag {
			return fmt.Errorf("rank deficient design matrix (column %d)", j)
		}
	}
	return nil
}

// column maps unknown j of the refit to its coefficient column.
func (m *Matcher) column(ws *workspace, j int) int {
	if j < m.cols.NChannels {
		return m.cols.Background(j)
	}
	return m.cols.Gene(ws.active[j-m.cols.NChannels])
}
