// Copyright 2025 Poiesic Systems
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


package retrieve

import "errors"

var (
	// ErrDenseRetrieverRequired is returned when a dense retriever is not provided.
	ErrDenseRetrieverRequired = errors.New("dense retriever required")

	// ErrDenseRetrieval wraps failures of the dense retrieval collaborator.
	ErrDenseRetrieval = errors.New("dense retrieval failed")

	// ErrEmbedding classifies embedding failures while preparing the
	// diversification pool. Retrieve never returns it; the pipeline logs
	// it and falls back to the undiversified candidate order.
	ErrEmbedding = errors.New("embedding failed")

	// ErrInvalidOption is returned when a per-call option holds a value
	// outside its meaningful range.
	ErrInvalidOption = errors.New("invalid retrieve option")
)
