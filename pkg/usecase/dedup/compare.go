package dedup

import (
	"context"

	"github.com/m-mizutani/miru/pkg/model"
	"github.com/m-mizutani/miru/pkg/similarity"
	"golang.org/x/sync/errgroup"
)

// Scene-level fallback weights, used when neither document carries enough
// items to compare bags.
const (
	sceneDescriptionWeight = 0.7
	sceneLocationWeight    = 0.3
)

// scoreItemPair scores one object pair across name, location, color and
// description. Name, location and description are meaning-level comparisons;
// color is a surface text ratio since color names are short closed-vocabulary
// tokens where embeddings add noise. Each sub-score is in [0,1] and the
// weights sum to 1.0, so the result is bounded to [0,1].
func (e *Engine) scoreItemPair(ctx context.Context, a, b *model.VisualItem) (float64, error) {
	nameSim, err := e.semantic.Score(ctx, a.Name, b.Name)
	if err != nil {
		return 0, err
	}
	locSim, err := e.semantic.Score(ctx, a.Location, b.Location)
	if err != nil {
		return 0, err
	}
	descSim, err := e.semantic.Score(ctx, a.Description, b.Description)
	if err != nil {
		return 0, err
	}
	colorSim := similarity.Ratio(a.Color, b.Color)

	w := e.cfg.Weights
	return nameSim*w.Name + locSim*w.Location + colorSim*w.Color + descSim*w.Description, nil
}

// ScoreContexts computes the aggregate similarity of two visual contexts in
// [0,1].
//
// When both contexts carry the same, near-empty item bag (fewer than two
// items each and equal cardinality) the item bags hold no comparable signal,
// so the scene-level description and image location decide instead. A bag
// size mismatch never takes the fallback: a scene with one item is not a
// duplicate of a scene with ten, and the match-ratio denominator must see it.
//
// Otherwise every item of a searches for its best match among the items of
// b concurrently, and the per-item best scores reduce by match-ratio: the
// count of scores at or above MatchThreshold over max(len(a), len(b)). The
// reduction is commutative, so the result is deterministic regardless of
// task completion order, and the max denominator keeps the score symmetric.
func (e *Engine) ScoreContexts(ctx context.Context, a, b *model.VisualContext) (float64, error) {
	if len(a.Items) < 2 && len(b.Items) < 2 && len(a.Items) == len(b.Items) {
		return e.scoreScene(ctx, a, b)
	}

	denom := max(len(a.Items), len(b.Items))
	if denom == 0 {
		return 0.0, nil
	}

	// Fan-out/fan-in: one task per item of a, each reading only its own
	// item and the full bag of b. No task writes shared state, so the join
	// is race-free by construction.
	scores := make([]float64, len(a.Items))
	g, gctx := errgroup.WithContext(ctx)
	for i := range a.Items {
		g.Go(func() error {
			best := 0.0
			for j := range b.Items {
				s, err := e.scoreItemPair(gctx, &a.Items[i], &b.Items[j])
				if err != nil {
					return err
				}
				if s > best {
					best = s
				}
			}
			scores[i] = best
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	matched := 0
	for _, s := range scores {
		if s >= e.cfg.MatchThreshold {
			matched++
		}
	}
	return float64(matched) / float64(denom), nil
}

// scoreScene compares two near-empty contexts by their scene-level fields
func (e *Engine) scoreScene(ctx context.Context, a, b *model.VisualContext) (float64, error) {
	descSim, err := e.semantic.Score(ctx, a.Description, b.Description)
	if err != nil {
		return 0, err
	}
	locSim := similarity.Ratio(a.ImageLocation, b.ImageLocation)

	return descSim*sceneDescriptionWeight + locSim*sceneLocationWeight, nil
}

// QuickScore is a cheap lexical prescreen used by the purge scan: the scene
// description ratio blended with fingerprint set overlap. It never touches
// the embedding model.
func (e *Engine) QuickScore(a, b *model.VisualContext) float64 {
	descSim := similarity.Ratio(a.Description, b.Description)
	fpSim := similarity.Jaccard(a.Fingerprints(), b.Fingerprints())

	if fpSim > descSim {
		return fpSim
	}
	return descSim
}
