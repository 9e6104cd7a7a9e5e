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


package ai

import "errors"

// Collaborator failure errors. Implementations wrap these so callers
// can identify which AI service failed with errors.Is.
var (
	// ErrEmbedding indicates an embedding call failed.
	ErrEmbedding = errors.New("embedding failed")

	// ErrGeneration indicates a text generation call failed.
	ErrGeneration = errors.New("text generation failed")

	// ErrPairScoring indicates a cross-encoder scoring call failed.
	ErrPairScoring = errors.New("pair scoring failed")
)
