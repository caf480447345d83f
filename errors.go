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

package rcf

import "github.com/streamrcf/rcf/internal/rcferrors"

// Re-exported so callers can errors.Is against a Forest's errors without
// importing the internal package (spec.md §7's error kinds).
var (
	ErrInvalidArgument   = rcferrors.ErrInvalidArgument
	ErrInvalidReference  = rcferrors.ErrInvalidReference
	ErrNotPresent        = rcferrors.ErrNotPresent
	ErrCapacityExceeded  = rcferrors.ErrCapacityExceeded
	ErrIllegalState      = rcferrors.ErrIllegalState
	ErrInvalidConfig     = rcferrors.ErrInvalidConfig
)
