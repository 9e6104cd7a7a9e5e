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


// Package ai provides abstractions for the AI collaborators used by the
// retrieval engine.
//
// This package defines interfaces for text embeddings, text generation
// and cross-encoder pair scoring. It follows the dependency inversion
// principle, allowing the retrieval pipeline to depend on abstractions
// rather than concrete implementations.
//
// # Design Principles
//
// The package is designed around three collaborator interfaces:
//
//   - Embedder: generates vector embeddings from text
//   - Generator: produces free-form completions from a prompt
//   - PairScorer: scores (query, text) pairs jointly
//
// An AIProvider aggregates the embedder and generator for convenient
// initialization. Pair scoring is deliberately kept outside the
// provider: a cross-encoder is typically a separate service that may or
// may not be deployed, and its absence selects a different rescoring
// path at configuration time.
//
// # Implementation Packages
//
// The ai package includes three implementation sub-packages:
//
//   - ai/openai: production embedder and generator using OpenAI-compatible APIs
//   - ai/rerank: HTTP client for a cross-encoder rerank service
//   - ai/mock: test doubles for unit testing without external dependencies
//
// # Constructor Return Type Pattern
//
// Public constructors (openai.NewProvider, openai.NewEmbedder, etc.) return
// INTERFACE types to enforce abstraction and prevent accidental coupling to
// concrete implementations.
//
//	provider, err := openai.NewProvider(config)  // returns ai.AIProvider
//
// Test utility constructors (mock.NewMockEmbedder, mock.NewMockGenerator,
// mock.NewMockPairScorer) return CONCRETE types to enable behavior
// injection via function fields and call-count assertions.
//
//	mockEmbed := mock.NewMockEmbedder()  // returns *mock.MockEmbedder
//	mockEmbed.EmbedTextFunc = ...        // needs concrete type
//	count := mockEmbed.CallCount()       // test assertion
//
// # Usage Example
//
//	config := ai.DefaultConfig()
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vector, err := provider.Embedder().EmbedText(ctx, "Hello world")
//	answer, err := provider.Generator().GenerateText(ctx, "Summarize: ...")
package ai
