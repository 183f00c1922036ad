// Copyright 2026 Blink Labs Software
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

package chain

import (
	"fmt"

	json "github.com/goccy/go-json"
)

// RuntimeVersion describes the runtime active at some block
type RuntimeVersion struct {
	SpecName           string      `json:"specName"`
	ImplName           string      `json:"implName"`
	AuthoringVersion   uint32      `json:"authoringVersion"`
	SpecVersion        uint32      `json:"specVersion"`
	ImplVersion        uint32      `json:"implVersion"`
	TransactionVersion uint32      `json:"transactionVersion"`
	StateVersion       uint32      `json:"stateVersion"`
	Apis               ApiVersions `json:"apis"`
}

// ApiVersion is one supported runtime API, identified by the 8-byte hash of
// its name
type ApiVersion struct {
	Id      Bytes
	Version uint32
}

// ApiVersions is the set of runtime APIs a runtime supports. The older
// interface reports it as a list of [id, version] pairs, the newer one as
// an id-to-version object, so both forms are accepted
type ApiVersions []ApiVersion

func (a ApiVersions) MarshalJSON() ([]byte, error) {
	tmpApis := make([][2]any, 0, len(a))
	for _, api := range a {
		tmpApis = append(tmpApis, [2]any{api.Id.String(), api.Version})
	}
	return json.Marshal(tmpApis)
}

func (a *ApiVersions) UnmarshalJSON(data []byte) error {
	// Skip over null and empty values
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if data[0] == '{' {
		var tmpMap map[string]uint32
		if err := json.Unmarshal(data, &tmpMap); err != nil {
			return err
		}
		tmpApis := make(ApiVersions, 0, len(tmpMap))
		for id, version := range tmpMap {
			tmpId, err := NewBytesFromHexString(id)
			if err != nil {
				return fmt.Errorf("invalid runtime API id %q: %w", id, err)
			}
			tmpApis = append(
				tmpApis,
				ApiVersion{Id: tmpId, Version: version},
			)
		}
		*a = tmpApis
		return nil
	}
	var tmpList [][2]json.RawMessage
	if err := json.Unmarshal(data, &tmpList); err != nil {
		return err
	}
	tmpApis := make(ApiVersions, 0, len(tmpList))
	for _, entry := range tmpList {
		var tmpId Bytes
		if err := json.Unmarshal(entry[0], &tmpId); err != nil {
			return err
		}
		var tmpVersion uint32
		if err := json.Unmarshal(entry[1], &tmpVersion); err != nil {
			return err
		}
		tmpApis = append(
			tmpApis,
			ApiVersion{Id: tmpId, Version: tmpVersion},
		)
	}
	*a = tmpApis
	return nil
}
