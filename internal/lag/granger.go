package lag

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/rewired-gh/policytone/internal/models"
)

// GrangerResult is the F-test that lags of x improve an autoregression of y.
type GrangerResult struct {
	Lags   int     `json:"lags"`
	Rows   int     `json:"rows"`
	F      float64 `json:"f"`
	PValue float64 `json:"p_value"`
	DF1    int     `json:"df1"`
	DF2    int     `json:"df2"`
}

// Granger tests whether x Granger-causes y with maxLag lags. Rows touching a
// NaN are dropped.
func Granger(series string, x, y []float64, maxLag int) (GrangerResult, error) {
	if len(x) != len(y) {
		return GrangerResult{}, models.NewError(models.KindInputValidation, "lag", series,
			"series length mismatch: %d vs %d", len(x), len(y))
	}
	if maxLag < 1 {
		return GrangerResult{}, models.NewError(models.KindInputValidation, "lag", series, "max lag must be positive")
	}

	var target []float64
	var restricted, full [][]float64
rows:
	for t := maxLag; t < len(y); t++ {
		if math.IsNaN(y[t]) {
			continue
		}
		r := []float64{1}
		u := []float64{1}
		for k := 1; k <= maxLag; k++ {
			if math.IsNaN(y[t-k]) || math.IsNaN(x[t-k]) {
				continue rows
			}
			r = append(r, y[t-k])
		}
		u = append(u, r[1:]...)
		for k := 1; k <= maxLag; k++ {
			u = append(u, x[t-k])
		}
		target = append(target, y[t])
		restricted = append(restricted, r)
		full = append(full, u)
	}

	n := len(target)
	if n < 3*maxLag+2 {
		return GrangerResult{}, models.NewError(models.KindInsufficientData, "lag", series,
			"granger with %d lags needs %d rows, have %d", maxLag, 3*maxLag+2, n)
	}

	yv := mat.NewVecDense(n, target)
	rssR, err := residualSS(restricted, yv)
	if err != nil {
		return GrangerResult{}, models.WrapError(models.KindInsufficientData, "lag", series, err, "restricted regression")
	}
	rssU, err := residualSS(full, yv)
	if err != nil {
		return GrangerResult{}, models.WrapError(models.KindInsufficientData, "lag", series, err, "unrestricted regression")
	}

	df1, df2 := maxLag, n-2*maxLag-1
	res := GrangerResult{Lags: maxLag, Rows: n, DF1: df1, DF2: df2}
	if rssU <= 0 {
		res.F = math.Inf(1)
		res.PValue = 0
		return res, nil
	}
	res.F = math.Max(0, (rssR-rssU)/float64(df1)) / (rssU / float64(df2))
	res.PValue = 1 - distuv.F{D1: float64(df1), D2: float64(df2)}.CDF(res.F)
	return res, nil
}

func residualSS(rows [][]float64, y *mat.VecDense) (float64, error) {
	cols := len(rows[0])
	data := make([]float64, 0, len(rows)*cols)
	for _, r := range rows {
		data = append(data, r...)
	}
	x := mat.NewDense(len(rows), cols, data)

	var qr mat.QR
	qr.Factorize(x)
	var beta mat.VecDense
	if err := qr.SolveVecTo(&beta, false, y); err != nil {
		return 0, err
	}
	var resid mat.VecDense
	resid.MulVec(x, &beta)
	resid.SubVec(y, &resid)
	return mat.Dot(&resid, &resid), nil
}
