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
	"strings"

	"github.com/blinklabs-io/gosubstrate/backend"
	"github.com/blinklabs-io/gosubstrate/chain"
)

type submitTxFlags struct {
	flagset *flag.FlagSet
	file    string
}

func newSubmitTxFlags() *submitTxFlags {
	f := &submitTxFlags{
		flagset: flag.NewFlagSet("submit-tx", flag.ExitOnError),
	}
	f.flagset.StringVar(
		&f.file,
		"file",
		"",
		"path to a file containing the hex-encoded signed extrinsic",
	)
	return f
}

func runSubmitTx(f *globalFlags) {
	submitTxFlags := newSubmitTxFlags()
	err := submitTxFlags.flagset.Parse(f.flagset.Args()[1:])
	if err != nil {
		fmt.Printf("failed to parse subcommand args: %s\n", err)
		os.Exit(1)
	}

	var txHex string
	if submitTxFlags.file != "" {
		data, err := os.ReadFile(submitTxFlags.file)
		if err != nil {
			fmt.Printf("Failed to read transaction file: %s\n", err)
			os.Exit(1)
		}
		txHex = strings.TrimSpace(string(data))
	} else if len(submitTxFlags.flagset.Args()) > 0 {
		txHex = submitTxFlags.flagset.Arg(0)
	} else {
		fmt.Printf("You must specify a hex-encoded signed extrinsic or -file\n")
		os.Exit(1)
	}
	tx, err := chain.NewBytesFromHexString(txHex)
	if err != nil {
		fmt.Printf("Invalid transaction hex: %s\n", err)
		os.Exit(1)
	}

	client := createClient(f)
	defer client.Close()
	ctx := context.Background()

	fmt.Printf("Submitting transaction %s\n", chain.Blake2b256Hash(tx))
	stream, err := client.Backend().SubmitTransaction(ctx, tx)
	if err != nil {
		fmt.Printf("ERROR: failed to submit transaction: %s\n", err)
		os.Exit(1)
	}
	var lastStatus backend.TransactionStatus
	for status := range stream.Chan() {
		fmt.Printf("status: %s\n", status)
		lastStatus = status
	}
	select {
	case err := <-stream.Errors():
		fmt.Printf("ERROR: %s\n", err)
		os.Exit(1)
	default:
	}
	if lastStatus.Kind != backend.TransactionStatusInFinalizedBlock {
		os.Exit(1)
	}
}
