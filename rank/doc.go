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


// Package rank implements the post-retrieval ranking stages: reciprocal
// rank fusion, maximal marginal relevance diversification, and pairwise
// rescoring.
//
// # Fusion
//
// Fuse merges a dense (vector similarity) result list and a sparse
// (lexical) result list into a single ranking. Rank fusion sidesteps the
// score-scale mismatch between the two retrieval systems: only list
// positions matter, so lexical scores and vector similarities never need
// to be normalized against each other.
//
// # Diversification
//
// Diversify re-selects a subset of a candidate pool so that results
// balance query relevance against redundancy with each other. Selection
// is greedy and deterministic over the input ordering.
//
// # Rescoring
//
// Rescorer re-orders a candidate pool using a pairwise relevance model.
// The scoring path is fixed at construction time: a cross-encoder when
// one is configured, a text-generation rating fallback when only a
// generator is available, and an identity pass-through with neither.
//
// All stages treat candidates as values: each returns a fresh slice of
// cloned candidates and never mutates its input.
package rank
