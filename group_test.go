// Copyright 2025 The Flathash Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package flathash

import (
	"errors"
	"slices"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGroupBy(t *testing.T) {
	names := []string{"Patti", "Aretha", "Anita", "Gladys"}
	m, err := GroupBy(slices.Values(names), func(name string) (string, error) {
		return name[:1], nil
	})
	require.NoError(t, err)
	require.Equal(t, map[string][]string{
		"P": {"Patti"},
		"A": {"Aretha", "Anita"},
		"G": {"Gladys"},
	}, m.toBuiltinMap())
}

func TestGroupByOrder(t *testing.T) {
	// Elements within each bucket appear in the same relative order as in
	// the input.
	var input []int
	for i := 0; i < 1000; i++ {
		input = append(input, i)
	}
	keyFn := func(e int) (int, error) { return e % 7, nil }

	m, err := GroupBy(slices.Values(input), keyFn)
	require.NoError(t, err)
	require.EqualValues(t, 7, m.Len())

	expected := make(map[int][]int)
	for _, e := range input {
		expected[e%7] = append(expected[e%7], e)
	}
	require.Equal(t, expected, m.toBuiltinMap())
}

func TestGroupByKeyError(t *testing.T) {
	errBoom := errors.New("boom")
	m, err := GroupBy(slices.Values([]int{1, 2, 3}), func(e int) (string, error) {
		if e == 2 {
			return "", errBoom
		}
		return strconv.Itoa(e), nil
	})
	require.Nil(t, m)
	require.ErrorIs(t, err, errBoom)
}

func TestGroupByEmpty(t *testing.T) {
	m, err := GroupBy(slices.Values([]int(nil)), func(e int) (int, error) {
		return e, nil
	})
	require.NoError(t, err)
	require.EqualValues(t, 0, m.Len())
	require.Equal(t, 0, m.Capacity())
}
