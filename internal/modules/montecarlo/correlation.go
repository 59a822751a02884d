package montecarlo

import (
	"gonum.org/v1/gonum/mat"

	"github.com/aristath/runway/internal/domain"
	"github.com/aristath/runway/internal/modules/elasticity"
)

// CorrelationMatrix returns the correlation matrix over (revenue, burn, churn).
// Burn and churn are correlated only through revenue, which keeps the matrix
// positive definite for every coefficient in (-1, 1).
func CorrelationMatrix(p elasticity.Parameters) *mat.SymDense {
	rb, rc := p.CorrRevenueBurn, p.CorrRevenueChurn
	return mat.NewSymDense(3, []float64{
		1, rb, rc,
		rb, 1, rb * rc,
		rc, rb * rc, 1,
	})
}

// choleskyFactor returns the lower-triangular L with L*L^T equal to the correlation matrix
func choleskyFactor(p elasticity.Parameters) ([3][3]float64, error) {
	var chol mat.Cholesky
	if ok := chol.Factorize(CorrelationMatrix(p)); !ok {
		return [3][3]float64{}, &domain.ConfigurationError{Field: "correlation", Reason: "matrix is not positive definite"}
	}

	var l mat.TriDense
	chol.LTo(&l)

	var out [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j <= i; j++ {
			out[i][j] = l.At(i, j)
		}
	}
	return out, nil
}
