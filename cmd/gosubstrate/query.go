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

package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/blinklabs-io/gosubstrate/backend"
	"github.com/blinklabs-io/gosubstrate/chain"
)

type queryFlags struct {
	flagset  *flag.FlagSet
	at       string
	prefix   bool
	pageSize uint
}

func newQueryFlags() *queryFlags {
	f := &queryFlags{
		flagset: flag.NewFlagSet("query", flag.ExitOnError),
	}
	f.flagset.StringVar(
		&f.at,
		"at",
		"",
		"block hash to query at (defaults to the latest finalized block)",
	)
	f.flagset.BoolVar(
		&f.prefix,
		"prefix",
		false,
		"treat the key as a prefix and list all entries under it",
	)
	f.flagset.UintVar(
		&f.pageSize,
		"page-size",
		0,
		"number of keys to fetch per page in prefix mode (0 uses the default)",
	)
	return f
}

func runQuery(f *globalFlags) {
	queryFlags := newQueryFlags()
	err := queryFlags.flagset.Parse(f.flagset.Args()[1:])
	if err != nil {
		fmt.Printf("failed to parse subcommand args: %s\n", err)
		os.Exit(1)
	}
	if len(queryFlags.flagset.Args()) == 0 {
		fmt.Printf("You must specify at least one hex-encoded storage key\n")
		os.Exit(1)
	}
	var keys []chain.Bytes
	for _, arg := range queryFlags.flagset.Args() {
		key, err := chain.NewBytesFromHexString(arg)
		if err != nil {
			fmt.Printf("Invalid storage key %q: %s\n", arg, err)
			os.Exit(1)
		}
		keys = append(keys, key)
	}
	if queryFlags.prefix && len(keys) > 1 {
		fmt.Printf("Only one key may be given in prefix mode\n")
		os.Exit(1)
	}

	client := createClient(f)
	defer client.Close()
	ctx := context.Background()

	var blockHash chain.Hash
	if queryFlags.at != "" {
		blockHash, err = chain.NewHashFromHexString(queryFlags.at)
		if err != nil {
			fmt.Printf("Invalid block hash %q: %s\n", queryFlags.at, err)
			os.Exit(1)
		}
	} else {
		ref, err := client.Backend().LatestFinalizedBlock(ctx)
		if err != nil {
			fmt.Printf("ERROR: failed to get finalized block: %s\n", err)
			os.Exit(1)
		}
		defer ref.Release()
		blockHash = ref.Hash()
	}
	fmt.Printf("Querying storage at block %s\n", blockHash)

	var stream *backend.StorageStream
	if queryFlags.prefix {
		stream, err = client.Backend().StorageIterate(
			ctx,
			blockHash,
			keys[0],
			uint32(queryFlags.pageSize),
		)
	} else {
		stream, err = client.Backend().StorageValues(ctx, blockHash, keys)
	}
	if err != nil {
		fmt.Printf("ERROR: failed to start storage stream: %s\n", err)
		os.Exit(1)
	}
	count := 0
	for entry := range stream.Chan() {
		fmt.Printf("%s = %s\n", entry.Key, entry.Value)
		count++
	}
	select {
	case err := <-stream.Errors():
		fmt.Printf("ERROR: %s\n", err)
		os.Exit(1)
	default:
	}
	fmt.Printf("%d entries\n", count)
}
