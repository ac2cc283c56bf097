package pointsservice

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveAwardValue(t *testing.T) {
	tests := []struct {
		name     string
		rules    []byte
		defaults map[string]int
		category string
		want     int
	}{
		{name: "no setting", category: CategoryHonorAward, want: BuiltinAwardValue},
		{name: "nested override", rules: []byte(`{"honors":{"award":12}}`), category: CategoryHonorAward, want: 12},
		{name: "negative override", rules: []byte(`{"honors":{"award":-1}}`), category: CategoryHonorAward, want: -1},
		{name: "integral float", rules: []byte(`{"honors":{"award":8.0}}`), category: CategoryHonorAward, want: 8},
		{name: "fractional ignored", rules: []byte(`{"honors":{"award":2.5}}`), category: CategoryHonorAward, want: BuiltinAwardValue},
		{name: "string ignored", rules: []byte(`{"honors":{"award":"9"}}`), category: CategoryHonorAward, want: BuiltinAwardValue},
		{name: "path missing", rules: []byte(`{"attendance":{"bonus":2}}`), category: CategoryHonorAward, want: BuiltinAwardValue},
		{name: "path through scalar", rules: []byte(`{"honors":4}`), category: CategoryHonorAward, want: BuiltinAwardValue},
		{name: "malformed json", rules: []byte(`not json`), category: CategoryHonorAward, want: BuiltinAwardValue},
		{name: "configured default", defaults: map[string]int{"attendance.bonus": 2}, category: "attendance.bonus", want: 2},
		{name: "override beats configured default", rules: []byte(`{"attendance":{"bonus":4}}`), defaults: map[string]int{"attendance.bonus": 2}, category: "attendance.bonus", want: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := NewPolicyResolver(&FakeSettings{Rules: tt.rules}, tt.defaults)

			got, err := resolver.ResolveAwardValue(context.Background(), nil, nil, testOrg, tt.category)

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveAwardValue_StoreError(t *testing.T) {
	resolver := NewPolicyResolver(&FakeSettings{Err: errors.New("db down")}, nil)

	_, err := resolver.ResolveAwardValue(context.Background(), nil, nil, testOrg, CategoryHonorAward)

	assert.ErrorContains(t, err, "db down")
}

func TestResolveAwardValue_NoStore(t *testing.T) {
	resolver := NewPolicyResolver(nil, nil)

	got, err := resolver.ResolveAwardValue(context.Background(), nil, nil, testOrg, CategoryHonorAward)

	require.NoError(t, err)
	assert.Equal(t, BuiltinAwardValue, got)
}
