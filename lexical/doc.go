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


// Package lexical provides an in-memory BM25 index over a corpus of
// text passages.
//
// The Index is built wholesale from a corpus snapshot and rebuilt on
// corpus change; there is no incremental update. Builds take the write
// lock and searches take the read lock, so concurrent searches against
// a completed build are safe and a rebuild never races an in-flight
// search.
//
// Scoring is fully deterministic: identical corpus, query and
// parameters produce identical ranked output, with ties broken by
// corpus order.
package lexical
