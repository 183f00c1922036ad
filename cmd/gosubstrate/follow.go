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
)

type followFlags struct {
	flagset *flag.FlagSet
	best    bool
	all     bool
}

func newFollowFlags() *followFlags {
	f := &followFlags{
		flagset: flag.NewFlagSet("follow", flag.ExitOnError),
	}
	f.flagset.BoolVar(
		&f.best,
		"best",
		false,
		"follow new best blocks instead of finalized blocks",
	)
	f.flagset.BoolVar(
		&f.all,
		"all",
		false,
		"follow all announced blocks instead of finalized blocks",
	)
	return f
}

func runFollow(f *globalFlags) {
	followFlags := newFollowFlags()
	err := followFlags.flagset.Parse(f.flagset.Args()[1:])
	if err != nil {
		fmt.Printf("failed to parse subcommand args: %s\n", err)
		os.Exit(1)
	}

	client := createClient(f)
	defer client.Close()
	ctx := context.Background()

	var stream *backend.HeaderStream
	switch {
	case followFlags.all:
		stream, err = client.Backend().AllHeaders(ctx)
	case followFlags.best:
		stream, err = client.Backend().BestHeaders(ctx)
	default:
		stream, err = client.Backend().FinalizedHeaders(ctx)
	}
	if err != nil {
		fmt.Printf("ERROR: failed to start header stream: %s\n", err)
		os.Exit(1)
	}
	for update := range stream.Chan() {
		fmt.Printf(
			"block %d: hash = %s, parent = %s\n",
			update.Header.Number,
			update.Ref.Hash(),
			update.Header.ParentHash,
		)
		update.Ref.Release()
	}
	select {
	case err := <-stream.Errors():
		fmt.Printf("ERROR: %s\n", err)
		os.Exit(1)
	default:
	}
}
