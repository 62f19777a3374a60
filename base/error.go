// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package base

import "github.com/juju/errors"

// Error kinds raised by the rating pipeline. Attach them with errors.WithType
// and test them with errors.Is.
const (
	// ErrLoad means a rating file is missing or malformed.
	ErrLoad = errors.ConstError("load error")
	// ErrEncoding means an identifier was never seen during training.
	ErrEncoding = errors.ConstError("encoding error")
	// ErrTraining means the train set is empty or hyper-parameters are invalid.
	ErrTraining = errors.ConstError("training error")
	// ErrEvaluation means the test set cannot be scored.
	ErrEvaluation = errors.ConstError("evaluation error")
)
