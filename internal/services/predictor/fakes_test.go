package predictor

import (
	"errors"

	"github.com/LeonardoBeccarini/irrigation_predictor/internal/model"
)

type fakeScaler struct {
	calls int
	last  model.FeatureVector
	err   error
}

func (s *fakeScaler) Transform(f model.FeatureVector) (model.ScaledFeatureVector, error) {
	s.calls++
	s.last = f
	if s.err != nil {
		return nil, s.err
	}
	return model.ScaledFeatureVector(f.Values()), nil
}

type fakeClassifier struct {
	calls int
	label int
	err   error
}

func (c *fakeClassifier) Predict(model.ScaledFeatureVector) (int, error) {
	c.calls++
	if c.err != nil {
		return 0, c.err
	}
	return c.label, nil
}

var errBoom = errors.New("boom")

func newTestPipeline(label int) (*Pipeline, *fakeScaler, *fakeClassifier) {
	s := &fakeScaler{}
	c := &fakeClassifier{label: label}
	return NewPipeline(&ModelBundle{Scaler: s, Classifier: c}, nil), s, c
}

func reading(m, t, h any) map[string]any {
	return map[string]any{KeyMoisture: m, KeyTemperature: t, KeyHumidity: h}
}
