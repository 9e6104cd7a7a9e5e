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


package core

import "fmt"

// ValidatePassage validates a Passage according to domain rules.
//
// Validation rules:
//   - Id must not be empty
//   - Content must not be empty
//   - Metadata values must be primitive (string/number/boolean)
//
// NOT validated (populated by processors):
//   - Vector (can be empty until the embedding processor runs)
//   - InsertedAt/UpdatedAt (set by storage)
func ValidatePassage(p *Passage) error {
	if p == nil {
		return fmt.Errorf("%w: passage is nil", ErrInvalidPassage)
	}

	if p.Id == "" {
		return fmt.Errorf("%w: %w", ErrInvalidPassage, ErrEmptyID)
	}

	if p.Content == "" {
		return fmt.Errorf("%w: %w", ErrInvalidPassage, ErrEmptyContent)
	}

	if err := ValidateMetadata(p.Metadata); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPassage, err)
	}

	return nil
}

// ValidateMetadata checks that every metadata value is a primitive
// type. Nested maps and slices are rejected so stored metadata stays
// flat and serializable.
func ValidateMetadata(m map[string]any) error {
	for k, v := range m {
		switch v.(type) {
		case string, bool, int, int64, float64:
		default:
			return fmt.Errorf("%w: key %q holds %T", ErrInvalidMetadataValue, k, v)
		}
	}
	return nil
}
