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


// Package rerank provides an HTTP client for cross-encoder scoring services.
//
// The client implements ai.PairScorer by POSTing query/candidate batches to
// a /v1/rerank endpoint and mapping the returned scores back to candidate
// positions. It is designed for services that host cross-encoder models
// such as bge-reranker-v2-m3 behind an OpenAI-style JSON API.
//
// # Usage
//
//	scorer, err := rerank.NewClient("http://localhost:8001", "bge-reranker-v2-m3")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	scores, err := scorer.ScorePairs(ctx, "query text", []string{"passage one", "passage two"})
package rerank
