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
	"fmt"
)

// ErrDuplicateKey is returned by the unique-sequence constructors when two
// input pairs share an equal key. Use errors.Is to test for it; the concrete
// error is a DuplicateKeyError carrying the offending key.
var ErrDuplicateKey = errors.New("flathash: duplicate key")

// DuplicateKeyError records the key that appeared more than once in the
// input to CollectUnique or CollectSetUnique.
type DuplicateKeyError[K comparable] struct {
	Key K
}

func (e *DuplicateKeyError[K]) Error() string {
	return fmt.Sprintf("flathash: duplicate key: %v", e.Key)
}

func (e *DuplicateKeyError[K]) Is(target error) bool {
	return target == ErrDuplicateKey
}
