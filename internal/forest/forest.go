// Package forest implements the root-cause classifier: an ensemble of
// bagged, feature-randomized decision trees trained on closed deviation
// records (mixed categorical/numeric features, confirmed root-cause label).
//
// An ensemble of shallow trees was chosen over a single stronger model
// because investigations need feature importances and inspectable decision
// paths, and because the historical corpus is small and noisy. Training is
// fully deterministic under a fixed seed: the seed is an explicit
// configuration input threaded through every tree, never ambient process
// state, so reported importances and predictions are re-derivable.
//
// A fitted Model is immutable. Refitting produces a fresh Model instance,
// so predictions in flight against an older model are unaffected.
package forest

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arvense/batchsight/internal/models"
)

// Classifier is the model-family-agnostic capability the rest of the
// system programs against: alternative algorithms can substitute for the
// tree ensemble without touching scoring or Pareto code.
type Classifier interface {
	Fit(records []models.DeviationRecord) error
	Predict(features map[string]models.FeatureValue) (models.CausePrediction, error)
	Explain(features map[string]models.FeatureValue) (Explanation, error)
}

// Config holds the training parameters. All values are externally
// supplied; zero values fall back to the documented defaults.
type Config struct {
	Trees        int   `json:"trees"`          // ensemble size, default 100
	MaxDepth     int   `json:"max_depth"`      // default 8
	MinLeaf      int   `json:"min_leaf"`       // minimum samples per leaf, default 1
	MinClassSize int   `json:"min_class_size"` // per-class training floor, default 5
	Seed         int64 `json:"seed"`
}

func (c Config) withDefaults() Config {
	if c.Trees <= 0 {
		c.Trees = 100
	}
	if c.MaxDepth <= 0 {
		c.MaxDepth = 8
	}
	if c.MinLeaf <= 0 {
		c.MinLeaf = 1
	}
	if c.MinClassSize <= 0 {
		c.MinClassSize = 5
	}
	return c
}

// Model is one fitted, immutable ensemble. The training schema travels
// with the trees so a persisted model can validate inputs without the
// original corpus.
type Model struct {
	Schema      Schema             `json:"schema"`
	Trees       []*node            `json:"trees"`
	Importances map[string]float64 `json:"importances"` // normalized impurity decrease per feature
	Config      Config             `json:"config"`
	TrainedAt   time.Time          `json:"trained_at"`
}

// Forest trains and serves tree-ensemble models. The current model is
// swapped atomically on refit; concurrent Predict calls are safe.
type Forest struct {
	cfg   Config
	mu    sync.RWMutex
	model *Model
}

// New returns a Forest with the given training configuration.
func New(cfg Config) *Forest {
	return &Forest{cfg: cfg.withDefaults()}
}

// Model returns the currently fitted model, or nil before the first Fit.
func (f *Forest) Model() *Model {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.model
}

// SetModel installs a previously persisted model (see LoadModel).
func (f *Forest) SetModel(m *Model) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.model = m
}

// Fit trains a new ensemble on the confirmed records in the corpus and
// installs it as the current model. Records without a confirmed root cause
// are skipped. Fit fails with InsufficientDataError when fewer than two
// distinct labels are present, any class is under the configured floor, or
// the records carry no features.
func (f *Forest) Fit(records []models.DeviationRecord) error {
	model, err := Train(records, f.cfg)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.model = model
	f.mu.Unlock()
	return nil
}

// Predict classifies the given features with the current model.
func (f *Forest) Predict(features map[string]models.FeatureValue) (models.CausePrediction, error) {
	model := f.Model()
	if model == nil {
		return models.CausePrediction{}, ErrModelNotFitted
	}
	return model.Predict(features)
}

// Explain classifies the given features and attributes the prediction to
// individual input features.
func (f *Forest) Explain(features map[string]models.FeatureValue) (Explanation, error) {
	model := f.Model()
	if model == nil {
		return Explanation{}, ErrModelNotFitted
	}
	return model.Explain(features)
}

// Train builds a fitted model without touching any Forest instance. It is
// the pure core of Fit and is what background retraining calls.
func Train(records []models.DeviationRecord, cfg Config) (*Model, error) {
	cfg = cfg.withDefaults()

	confirmed := make([]models.DeviationRecord, 0, len(records))
	for _, rec := range records {
		if rec.Confirmed() {
			confirmed = append(confirmed, rec)
		}
	}

	classCounts := make(map[string]int)
	for _, rec := range confirmed {
		classCounts[rec.RootCause]++
	}
	if len(classCounts) < 2 {
		return nil, InsufficientDataError{Labels: len(classCounts)}
	}
	causes := make([]string, 0, len(classCounts))
	for cause := range classCounts {
		causes = append(causes, cause)
	}
	sort.Strings(causes)
	for _, cause := range causes {
		if classCounts[cause] < cfg.MinClassSize {
			return nil, InsufficientDataError{
				Cause:       cause,
				Count:       classCounts[cause],
				MinPerClass: cfg.MinClassSize,
			}
		}
	}

	schema, err := buildSchema(confirmed)
	if err != nil {
		return nil, err
	}
	// A corpus of featureless records satisfies the label checks but gives
	// the trees nothing to split on.
	if len(schema.Features) == 0 {
		return nil, InsufficientDataError{NoFeatures: true}
	}

	vectors := make([][]float64, len(confirmed))
	labels := make([]int, len(confirmed))
	for i, rec := range confirmed {
		vector, err := schema.encode(rec.Features)
		if err != nil {
			return nil, fmt.Errorf("encoding record %s: %w", rec.ID, err)
		}
		vectors[i] = vector
		labels[i] = schema.labelIndex(rec.RootCause)
	}

	n := len(confirmed)
	mtry := int(math.Sqrt(float64(len(schema.Features))))
	if mtry < 1 {
		mtry = 1
	}

	master := rand.New(rand.NewSource(cfg.Seed))
	trees := make([]*node, cfg.Trees)
	importances := make([]float64, len(schema.Features))

	for t := 0; t < cfg.Trees; t++ {
		rng := rand.New(rand.NewSource(master.Int63()))

		// Bootstrap sample with replacement.
		sample := make([]int, n)
		for i := range sample {
			sample[i] = rng.Intn(n)
		}

		builder := &treeBuilder{
			vectors:     vectors,
			labels:      labels,
			schema:      schema,
			classes:     len(schema.Labels),
			maxDepth:    cfg.MaxDepth,
			minLeaf:     cfg.MinLeaf,
			mtry:        mtry,
			rng:         rng,
			total:       n,
			importances: make([]float64, len(schema.Features)),
		}
		trees[t] = builder.build(sample, 0)
		for i, imp := range builder.importances {
			importances[i] += imp
		}
	}

	// Normalize importances to sum to 1 so they are comparable across fits.
	var total float64
	for _, imp := range importances {
		total += imp
	}
	named := make(map[string]float64, len(schema.Features))
	for i, spec := range schema.Features {
		if total > 0 {
			named[spec.Name] = importances[i] / total
		} else {
			named[spec.Name] = 0
		}
	}

	return &Model{
		Schema:      schema,
		Trees:       trees,
		Importances: named,
		Config:      cfg,
		TrainedAt:   time.Now(),
	}, nil
}

// Predict returns the class-probability distribution over all causes
// observed in training, ordered by descending confidence. Unseen
// categorical values route through the unseen bucket rather than failing;
// a feature absent from the input entirely is a SchemaMismatchError.
func (m *Model) Predict(features map[string]models.FeatureValue) (models.CausePrediction, error) {
	dist, err := m.distribution(features)
	if err != nil {
		return models.CausePrediction{}, err
	}

	causes := make([]models.RankedCause, len(m.Schema.Labels))
	for i, label := range m.Schema.Labels {
		causes[i] = models.RankedCause{Cause: label, Confidence: dist[i]}
	}
	sort.Slice(causes, func(i, j int) bool {
		if causes[i].Confidence != causes[j].Confidence {
			return causes[i].Confidence > causes[j].Confidence
		}
		return causes[i].Cause < causes[j].Cause
	})

	return models.CausePrediction{
		ID:          uuid.New().String(),
		Causes:      causes,
		PredictedAt: time.Now(),
	}, nil
}

func (m *Model) distribution(features map[string]models.FeatureValue) ([]float64, error) {
	vector, err := m.Schema.encode(features)
	if err != nil {
		return nil, err
	}
	dist := make([]float64, len(m.Schema.Labels))
	for _, tree := range m.Trees {
		for i, p := range tree.predict(vector) {
			dist[i] += p
		}
	}
	for i := range dist {
		dist[i] /= float64(len(m.Trees))
	}
	return dist, nil
}
