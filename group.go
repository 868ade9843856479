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

import "iter"

// GroupBy iterates seq exactly once, computes key(e) for each element, and
// appends the element to the bucket for that key, creating the bucket on
// first encounter. Elements within a bucket keep their relative order from
// seq. An error from key aborts the operation and propagates; no map is
// returned.
func GroupBy[E any, K comparable](
	seq iter.Seq[E], key func(e E) (K, error),
) (*Map[K, []E], error) {
	m := New[K, []E](0)
	for e := range seq {
		k, err := key(e)
		if err != nil {
			m.Close()
			return nil, err
		}
		bucket, _ := m.t.get(k)
		m.t.put(k, append(bucket, e))
	}
	return m, nil
}
