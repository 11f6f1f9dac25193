// Copyright 2026 cinematch Project Authors
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

package config

import (
	"fmt"
	"time"
)

func panicValidation(name, message string) {
	panic(fmt.Sprintf("value of `%s` in config %s", name, message))
}

func validateNotEmpty(name, val string) {
	if val == "" {
		panicValidation(name, "must not be empty")
	}
}

func validatePositive(name string, val int) {
	if val <= 0 {
		panicValidation(name, fmt.Sprintf("must be positive, but the current value is %d", val))
	}
}

func validateNotNegativeDuration(name string, val time.Duration) {
	if val < 0 {
		panicValidation(name, fmt.Sprintf("must not be negative, but the current value is %v", val))
	}
}
