// Copyright 2025 The A2E Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/a2e-project/a2e/internal/a2ectl"
)

func main() {
	rootCmd := a2ectl.NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
