// Copyright 2024 The RCF authors. All Rights Reserved.
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

// Package rcferrors defines the sentinel error kinds shared across the
// forest's internal packages. Callers compare against these with errors.Is;
// context is attached at each call site with fmt.Errorf's %w verb.
package rcferrors

import "errors"

var (
	// ErrInvalidArgument covers dimension mismatches, out-of-range config
	// values, negative horizon/blockSize, and non-monotone sequence indices.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidReference is returned for an unknown or already-released
	// PointStore reference.
	ErrInvalidReference = errors.New("invalid reference")

	// ErrNotPresent is returned when a delete targets a reference that
	// isn't present in the tree it was asked to leave.
	ErrNotPresent = errors.New("not present")

	// ErrCapacityExceeded is returned when the PointStore arena is already
	// at its configured maximum capacity.
	ErrCapacityExceeded = errors.New("capacity exceeded")

	// ErrIllegalState is returned for an operation the forest's
	// configuration cannot serve, such as NearNeighbors on a forest built
	// without stored sequence indexes. Queries made before the forest is
	// ready return neutral results rather than this error.
	ErrIllegalState = errors.New("illegal state")

	// ErrInvalidConfig is returned by configGet/configSet for an unknown
	// key, or configSet on a key that isn't dynamically reconfigurable.
	ErrInvalidConfig = errors.New("invalid config key")
)
