/*
 *    Copyright 2021 chenquan
 *
 *    Licensed under the Apache License, Version 2.0 (the "License");
 *    you may not use this file except in compliance with the License.
 *    You may obtain a copy of the License at
 *
 *        http://www.apache.org/licenses/LICENSE-2.0
 *
 *    Unless required by applicable law or agreed to in writing, software
 *    distributed under the License is distributed on an "AS IS" BASIS,
 *    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *    See the License for the specific language governing permissions and
 *    limitations under the License.
 */

// Package subscription implements topic-filter wildcard matching and
// the per-session subscription set (spec §4.4).
package subscription

import "strings"

// ContainsWildcard reports whether t contains a '+' or '#' segment,
// which is illegal in a published topic name.
func ContainsWildcard(t string) bool {
	return strings.ContainsAny(t, "+#")
}

// Matches reports whether topic filter matches topic, walking
// '/'-separated segments left to right: '#' (only legal as the final
// segment) matches all remaining segments including zero of them; '+'
// matches exactly one segment; any other segment must be byte-identical.
func Matches(filter, topic string) bool {
	if filter == topic {
		return true
	}
	filterSegs := strings.Split(filter, "/")
	topicSegs := strings.Split(topic, "/")

	for i, fs := range filterSegs {
		if fs == "#" {
			// '#' must be the last segment of the filter.
			return i == len(filterSegs)-1
		}
		if i >= len(topicSegs) {
			return false
		}
		if fs == "+" {
			continue
		}
		if fs != topicSegs[i] {
			return false
		}
	}
	return len(filterSegs) == len(topicSegs)
}
