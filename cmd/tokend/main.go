// SPDX-FileCopyrightText: Copyright 2026 ApexID, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package main is the entry point for the tokend server.
package main

import (
	"os"

	"github.com/apexid/tokend/cmd/tokend/app"
)

func main() {
	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
