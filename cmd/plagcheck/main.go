// Package main is the plagcheck command: the HTTP service and a local comparison tool.
package main

import (
	"fmt"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "plagcheck",
	Short:         "Document similarity checker",
	Long:          "plagcheck compares two .txt or .docx documents and reports how similar their text is, over HTTP or from the command line.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// @title Plagiarism Checker API
// @version 1.0
// @description Compares two uploaded documents and reports their textual similarity.
// @BasePath /
func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
