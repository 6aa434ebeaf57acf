package forest

import (
	"fmt"
	"sort"

	"github.com/arvense/batchsight/internal/models"
)

// FeatureKind distinguishes numeric from categorical features.
type FeatureKind string

const (
	// FeatureNumeric features split on value thresholds.
	FeatureNumeric FeatureKind = "numeric"
	// FeatureCategorical features split on category equality.
	FeatureCategorical FeatureKind = "categorical"
)

// FeatureSpec describes one feature of the training schema. Categorical
// values encode to their index in Categories; anything not listed there
// (unseen at inference, or explicitly missing) encodes to the extra
// unseen bucket at index len(Categories). Missing numeric values encode
// to the training mean.
type FeatureSpec struct {
	Name       string      `json:"name"`
	Kind       FeatureKind `json:"kind"`
	Categories []string    `json:"categories,omitempty"` // sorted, training-time domain
	Mean       float64     `json:"mean,omitempty"`
}

// Schema is the feature and label layout a model was trained with. It is
// persisted alongside the trees so a loaded model can detect schema
// mismatches without re-deriving anything from the original corpus.
type Schema struct {
	Features []FeatureSpec `json:"features"`
	Labels   []string      `json:"labels"` // sorted cause labels
}

// unseenBucket is the encoded value for categorical values outside the
// training domain.
func (s FeatureSpec) unseenBucket() int {
	return len(s.Categories)
}

func (s FeatureSpec) encodeCategory(v string) int {
	idx := sort.SearchStrings(s.Categories, v)
	if idx < len(s.Categories) && s.Categories[idx] == v {
		return idx
	}
	return s.unseenBucket()
}

// buildSchema derives the schema from confirmed training records. Every
// record must carry every feature name seen in the corpus; missing values
// are explicit, absent keys are a schema mismatch. A feature whose
// non-missing values mix numeric and categorical is rejected.
func buildSchema(records []models.DeviationRecord) (Schema, error) {
	names := make(map[string]struct{})
	labels := make(map[string]struct{})
	for _, rec := range records {
		labels[rec.RootCause] = struct{}{}
		for name := range rec.Features {
			names[name] = struct{}{}
		}
	}

	sortedNames := make([]string, 0, len(names))
	for name := range names {
		sortedNames = append(sortedNames, name)
	}
	sort.Strings(sortedNames)

	var schema Schema
	for _, name := range sortedNames {
		spec := FeatureSpec{Name: name}
		categories := make(map[string]struct{})
		var sum float64
		var numericCount, categoricalCount int

		for _, rec := range records {
			value, ok := rec.Features[name]
			if !ok {
				return Schema{}, SchemaMismatchError{Feature: name, RecordID: rec.ID}
			}
			if value.Missing {
				continue
			}
			if value.IsNumeric {
				numericCount++
				sum += value.Numeric
			} else {
				categoricalCount++
				categories[value.Categorical] = struct{}{}
			}
		}

		switch {
		case numericCount > 0 && categoricalCount > 0:
			return Schema{}, fmt.Errorf("feature %q mixes numeric and categorical values", name)
		case numericCount > 0:
			spec.Kind = FeatureNumeric
			spec.Mean = sum / float64(numericCount)
		default:
			// All-missing features end up categorical with an empty domain;
			// every value lands in the unseen bucket and the feature never
			// yields a useful split.
			spec.Kind = FeatureCategorical
			spec.Categories = make([]string, 0, len(categories))
			for c := range categories {
				spec.Categories = append(spec.Categories, c)
			}
			sort.Strings(spec.Categories)
		}
		schema.Features = append(schema.Features, spec)
	}

	schema.Labels = make([]string, 0, len(labels))
	for l := range labels {
		schema.Labels = append(schema.Labels, l)
	}
	sort.Strings(schema.Labels)
	return schema, nil
}

func (s Schema) labelIndex(label string) int {
	idx := sort.SearchStrings(s.Labels, label)
	if idx < len(s.Labels) && s.Labels[idx] == label {
		return idx
	}
	return -1
}

// encode converts a feature map into the model's numeric vector. Absent
// keys are a SchemaMismatchError; explicitly missing or unseen values
// degrade to the unseen bucket (categorical) or training mean (numeric).
func (s Schema) encode(features map[string]models.FeatureValue) ([]float64, error) {
	vector := make([]float64, len(s.Features))
	for i, spec := range s.Features {
		value, ok := features[spec.Name]
		if !ok {
			return nil, SchemaMismatchError{Feature: spec.Name}
		}
		switch spec.Kind {
		case FeatureNumeric:
			if value.Missing || !value.IsNumeric {
				vector[i] = spec.Mean
			} else {
				vector[i] = value.Numeric
			}
		default:
			if value.Missing || value.IsNumeric {
				vector[i] = float64(spec.unseenBucket())
			} else {
				vector[i] = float64(spec.encodeCategory(value.Categorical))
			}
		}
	}
	return vector, nil
}
