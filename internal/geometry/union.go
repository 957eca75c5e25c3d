package geometry

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/twpayne/go-geos"

	"github.com/persistorai/explorer/internal/metrics"
	"github.com/persistorai/explorer/internal/models"
)

// DefaultEpsilon is the buffer width applied to each input in the second union tier.
const DefaultEpsilon = 0.001

// errTopology marks a GEOS failure raised during a union.
var errTopology = errors.New("geos topology failure")

// UnionFunc merges two geometries. GEOS reports failures by panicking.
type UnionFunc func(a, b *geos.Geom) *geos.Geom

// Resolver unions footprints, falling back through progressively more
// forgiving strategies when GEOS reports a topology failure:
//
//  1. union every input directly;
//  2. buffer each input by a small epsilon and retry;
//  3. fold the component polygons one at a time, dropping any that fail.
type Resolver struct {
	log     *logrus.Logger
	epsilon float64
	union   UnionFunc
}

// NewResolver creates a Resolver using GEOS union.
func NewResolver(log *logrus.Logger) *Resolver {
	return &Resolver{
		log:     log,
		epsilon: DefaultEpsilon,
		union:   func(a, b *geos.Geom) *geos.Geom { return a.Union(b) },
	}
}

// WithUnionFunc replaces the pairwise union operation.
func (r *Resolver) WithUnionFunc(fn UnionFunc) *Resolver {
	r.union = fn

	return r
}

// Union merges polygons into one geometry. It returns nil for no input and
// models.ErrUnionExhausted only if no strategy produced a result.
func (r *Resolver) Union(polygons []*geos.Geom) (*geos.Geom, error) {
	inputs := make([]*geos.Geom, 0, len(polygons))
	for _, p := range polygons {
		if p != nil {
			inputs = append(inputs, p)
		}
	}

	if len(inputs) == 0 {
		return nil, nil
	}

	if len(inputs) == 1 {
		return inputs[0], nil
	}

	out, err := r.fold(inputs)
	if err == nil {
		return out, nil
	}

	r.log.WithError(err).WithField("inputs", len(inputs)).Warn("union failed, retrying with buffered inputs")
	metrics.UnionFallbacks.WithLabelValues("buffer").Inc()

	buffered, err := r.buffered(inputs)
	if err == nil {
		out, err = r.fold(buffered)
		if err == nil {
			return out, nil
		}
	}

	r.log.WithError(err).Warn("buffered union failed, merging polygons individually")
	metrics.UnionFallbacks.WithLabelValues("filter").Inc()

	return r.filtered(inputs)
}

// UnionSimplified unions polygons and simplifies the result.
func (r *Resolver) UnionSimplified(polygons []*geos.Geom, tolerance float64) (*geos.Geom, error) {
	out, err := r.Union(polygons)
	if err != nil || out == nil {
		return out, err
	}

	return Simplify(out, tolerance), nil
}

func (r *Resolver) fold(inputs []*geos.Geom) (*geos.Geom, error) {
	acc := inputs[0]

	for _, g := range inputs[1:] {
		next, err := r.safeUnion(acc, g)
		if err != nil {
			return nil, err
		}

		acc = next
	}

	return acc, nil
}

func (r *Resolver) buffered(inputs []*geos.Geom) (out []*geos.Geom, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			out, err = nil, fmt.Errorf("%w: %v", errTopology, rec)
		}
	}()

	out = make([]*geos.Geom, len(inputs))
	for i, g := range inputs {
		out[i] = g.Buffer(r.epsilon, 8)
	}

	return out, nil
}

// filtered folds component polygons one at a time; a polygon whose union
// fails is excluded and the fold continues with the rest.
func (r *Resolver) filtered(inputs []*geos.Geom) (*geos.Geom, error) {
	var parts []*geos.Geom
	for _, g := range inputs {
		parts = append(parts, Polygons(g)...)
	}

	var (
		acc     *geos.Geom
		dropped int
	)

	for _, p := range parts {
		if acc == nil {
			if Usable(p) {
				acc = p
			} else {
				dropped++
			}

			continue
		}

		next, err := r.safeUnion(acc, p)
		if err != nil {
			dropped++

			continue
		}

		acc = next
	}

	if dropped > 0 {
		r.log.WithFields(logrus.Fields{
			"polygons": len(parts),
			"dropped":  dropped,
		}).Warn("excluded polygons from footprint union")
	}

	if acc == nil {
		return nil, models.ErrUnionExhausted
	}

	return acc, nil
}

func (r *Resolver) safeUnion(a, b *geos.Geom) (out *geos.Geom, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			out, err = nil, fmt.Errorf("%w: %v", errTopology, rec)
		}
	}()

	out = r.union(a, b)
	if out == nil {
		return nil, errTopology
	}

	return out, nil
}
