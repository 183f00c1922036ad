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

package gosubstrate

import (
	"io"
	"os"

	json "github.com/goccy/go-json"
)

// ChainSpec represents the identity portion of a Substrate chain spec file.
// Runtime genesis storage is not parsed since it's only useful to nodes
type ChainSpec struct {
	Name       string              `json:"name"`
	Id         string              `json:"id"`
	ChainType  string              `json:"chainType"`
	BootNodes  []string            `json:"bootNodes"`
	Properties ChainSpecProperties `json:"properties"`
}

type ChainSpecProperties struct {
	Ss58Format    uint16 `json:"ss58Format"`
	TokenDecimals uint32 `json:"tokenDecimals"`
	TokenSymbol   string `json:"tokenSymbol"`
}

func NewChainSpecFromFile(path string) (*ChainSpec, error) {
	dataFile, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer dataFile.Close()
	return NewChainSpecFromReader(dataFile)
}

func NewChainSpecFromReader(r io.Reader) (*ChainSpec, error) {
	c := &ChainSpec{}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, c); err != nil {
		return nil, err
	}
	return c, nil
}
