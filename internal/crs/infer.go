package crs

import (
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/persistorai/explorer/internal/models"
)

// DefaultInferenceCutoff is the minimum similarity for a WKT match.
const DefaultInferenceCutoff = 0.2

// Candidate is a CRS that a WKT default may be inferred as.
type Candidate struct {
	Code Code
	WKT  string
}

// Inferrer guesses the authority code of a free-form WKT string by its
// similarity to the WKT of known candidate CRSes.
type Inferrer struct {
	candidates []Candidate
	cutoff     float64
}

// NewInferrer creates an Inferrer over the given candidates.
func NewInferrer(candidates []Candidate) *Inferrer {
	return &Inferrer{candidates: candidates, cutoff: DefaultInferenceCutoff}
}

// Infer returns the most similar candidate at or above the cutoff.
func (i *Inferrer) Infer(wkt string) (Code, bool) {
	if i == nil {
		return Code{}, false
	}

	var (
		best      Code
		bestScore = -1.0
	)

	for _, c := range i.candidates {
		if score := similarity(wkt, c.WKT); score >= i.cutoff && score > bestScore {
			best, bestScore = c.Code, score
		}
	}

	return best, bestScore >= 0
}

// similarity is one minus the normalised edit distance.
func similarity(a, b string) float64 {
	longest := max(len(a), len(b))
	if longest == 0 {
		return 1
	}

	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

// DefaultCode resolves a product's default CRS. An empty default yields nil.
// A default that is neither an authority code nor inferable is a
// *models.ConfigurationError.
func DefaultCode(product, defaultCRS string, inf *Inferrer) (*Code, error) {
	defaultCRS = strings.TrimSpace(defaultCRS)
	if defaultCRS == "" {
		return nil, nil
	}

	if IsAuthorityForm(defaultCRS) {
		c, ok := ParseShorthand(defaultCRS)
		if !ok {
			return nil, &models.ConfigurationError{Product: product, Reason: fmt.Sprintf("malformed default crs %q", defaultCRS)}
		}

		return &c, nil
	}

	if c, ok := ParseWKTAuthority(defaultCRS); ok {
		return &c, nil
	}

	c, ok := inf.Infer(defaultCRS)
	if !ok {
		return nil, &models.ConfigurationError{
			Product: product,
			Reason:  "default crs is WKT that cannot be matched to an authority code; use a form such as EPSG:1234",
		}
	}

	return &c, nil
}
