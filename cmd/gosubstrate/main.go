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

	gosubstrate "github.com/blinklabs-io/gosubstrate"
)

type globalFlags struct {
	flagset *flag.FlagSet
	url     string
	network string
	backend string
}

func newGlobalFlags() *globalFlags {
	f := &globalFlags{
		flagset: flag.NewFlagSet(os.Args[0], flag.ExitOnError),
	}
	f.flagset.StringVar(
		&f.url,
		"url",
		"",
		"websocket URL of the node to connect to",
	)
	f.flagset.StringVar(
		&f.network,
		"network",
		"westend",
		"connect to a named network's public endpoints. this is ignored when -url is given",
	)
	f.flagset.StringVar(
		&f.backend,
		"backend",
		"",
		"force a node interface generation (chainhead or legacy) instead of auto-detecting",
	)
	return f
}

func main() {
	f := newGlobalFlags()
	err := f.flagset.Parse(os.Args[1:])
	if err != nil {
		fmt.Printf("failed to parse command args: %s\n", err)
		os.Exit(1)
	}

	if len(f.flagset.Args()) > 0 {
		switch f.flagset.Arg(0) {
		case "follow":
			runFollow(f)
		case "query":
			runQuery(f)
		case "submit-tx":
			runSubmitTx(f)
		default:
			fmt.Printf("Unknown subcommand: %s\n", f.flagset.Arg(0))
			os.Exit(1)
		}
	} else {
		fmt.Printf("You must specify a subcommand (follow, query, or submit-tx)\n")
		os.Exit(1)
	}
}

func createClient(f *globalFlags) *gosubstrate.Client {
	var options []gosubstrate.ClientOptionFunc
	if f.url != "" {
		options = append(options, gosubstrate.WithEndpoints(f.url))
	} else {
		network := gosubstrate.NetworkByName(f.network)
		if network.Name == gosubstrate.NetworkInvalid.Name {
			fmt.Printf("Invalid network specified: %s\n", f.network)
			os.Exit(1)
		}
		options = append(options, gosubstrate.WithNetwork(network))
	}
	switch f.backend {
	case "":
		// auto-detect
	case "chainhead", "chain-head":
		options = append(
			options,
			gosubstrate.WithBackendKind(gosubstrate.BackendChainHead),
		)
	case "legacy":
		options = append(
			options,
			gosubstrate.WithBackendKind(gosubstrate.BackendLegacy),
		)
	default:
		fmt.Printf("Invalid backend specified: %s\n", f.backend)
		os.Exit(1)
	}
	client, err := gosubstrate.New(options...)
	if err != nil {
		fmt.Printf("ERROR: %s\n", err)
		os.Exit(1)
	}
	if err := client.Dial(context.Background()); err != nil {
		fmt.Printf("Connection failed: %s\n", err)
		os.Exit(1)
	}
	go func() {
		for {
			err, ok := <-client.ErrorChan()
			if !ok {
				return
			}
			fmt.Printf("ERROR: %s\n", err)
			os.Exit(1)
		}
	}()
	fmt.Printf(
		"Connected to %s (genesis %s)\n",
		client.ChainName(),
		client.GenesisHash(),
	)
	return client
}
