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


// Package retrieve composes the retrieval pipeline end to end.
//
// The Retriever type implements a multi-stage retrieval algorithm:
//   - Dense retrieval through the narrow DenseRetriever contract
//   - Lexical BM25 search when an index is attached and built
//   - Reciprocal rank fusion of the two ranked lists
//   - An optional rescoring or diversification post-stage
//
// Per-call options tune each stage; results are filtered and truncated
// to produce the final ranked candidate list for a query.
package retrieve
