package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/netshaper/rush/pkg/rush/synth"
)

var exampleSpecCmd = &cobra.Command{
	Use:   "example-spec",
	Short: "Print a sample QoS spec in the JSON shape run expects",
	RunE:  runExampleSpec,
}

func init() {
	rootCmd.AddCommand(exampleSpecCmd)
}

func runExampleSpec(cmd *cobra.Command, args []string) error {
	b, err := json.MarshalIndent(synth.ExampleNetwork(), "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
